package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"audiorack/internal/errs"
	"audiorack/internal/source"
)

// radio returns the primary source as an *source.SdrRadio, or a
// NotSupported error if the primary isn't a radio (spec §4.2 only
// applies to the SdrRadio variant).
func (s *Server) radio() (*source.SdrRadio, error) {
	p := s.registry.Primary()
	if p == nil {
		return nil, errs.New(errs.NotFound, "httpapi.radio", "no active primary source")
	}
	r, ok := p.(*source.SdrRadio)
	if !ok {
		return nil, errs.New(errs.NotSupported, "httpapi.radio", "primary source is not a radio")
	}
	return r, nil
}

func (s *Server) handleGetRadioState(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}

func (s *Server) handleSetRadioFrequency(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioFrequencyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.SetFrequency(source.Band(req.Band), req.Frequency); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}

func (s *Server) handleStepRadioFrequency(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioStepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.StepFrequency(req.Up); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}

func (s *Server) handleSetRadioGain(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioGainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.SetGain(req.DB); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetRadioAutoGain(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioAutoGainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.SetAutoGain(req.On); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSetRadioDeviceVolume sets the tuner's device volume 0-100 (spec
// §3, §4.2, §6: "set_device_volume(0..100)").
func (s *Server) handleSetRadioDeviceVolume(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioDeviceVolumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.SetDeviceVolume(req.Volume); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSetRadioEqualizerMode sets the named equalizer preset (spec
// §3, §4.2, §6: "set_equalizer_mode(str)"; invalid mode -> InvalidArgument).
func (s *Server) handleSetRadioEqualizerMode(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioEqualizerModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.SetEqualizerMode(req.Mode); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleRadioScanStart starts an autonomous band sweep (spec §3, §4.2,
// §6: "scan_start(direction)").
func (s *Server) handleRadioScanStart(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioScanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := r.ScanStart(source.ScanDirection(req.Direction)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}

// handleRadioScanStop ends an in-progress scan (spec §3, §4.2, §6:
// "scan_stop").
func (s *Server) handleRadioScanStop(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	if err := r.ScanStop(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}

func (s *Server) handleListRadioPresets(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	presets, err := r.ListPresets()
	if err != nil {
		return err
	}
	out := make([]radioPresetDto, len(presets))
	for i, p := range presets {
		out[i] = radioPresetDto{ID: p.ID, Name: p.Name, Band: string(p.Band), Frequency: p.Frequency}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleSaveRadioPreset(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	var req radioPresetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := r.SavePreset(req.Name); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleDeleteRadioPreset(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := r.DeletePreset(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRecallRadioPreset(c echo.Context) error {
	r, err := s.radio()
	if err != nil {
		return err
	}
	id := c.Param("id")
	if err := r.RecallPreset(id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toRadioStateDto(r.RadioState()))
}
