package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"audiorack/internal/errs"
)

// --- Playback (spec §6) ---

func (s *Server) handleGetPlayback(c echo.Context) error {
	dto := s.registry.BuildPlaybackState(s.mixer.MasterBalance(), s.mixer.MasterMute())
	dto.Volume = s.mixer.MasterGain()
	return c.JSON(http.StatusOK, dto)
}

func (s *Server) handleUpdatePlayback(c echo.Context) error {
	var req playbackUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "volume out of range [0,1]")
		}
		s.mixer.SetMasterGain(*req.Volume)
	}
	if req.Balance != nil {
		if *req.Balance < -1 || *req.Balance > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "balance out of range [-1,1]")
		}
		s.mixer.SetMasterBalance(*req.Balance)
	}
	if req.IsMuted != nil {
		s.mixer.SetMasterMute(*req.IsMuted)
	}

	switch req.Action {
	case "", "None":
	case "Play":
		if req.SourceID == "" {
			if p := s.registry.Primary(); p != nil {
				if err := p.Play(); err != nil {
					return err
				}
			}
		} else if err := s.registry.SetPrimaryAndPlay(req.SourceID); err != nil {
			return err
		}
	case "Pause":
		if p := s.registry.Primary(); p != nil {
			if err := p.Pause(); err != nil {
				return err
			}
		}
	case "Stop":
		if p := s.registry.Primary(); p != nil {
			if err := p.Stop(); err != nil {
				return err
			}
		}
	case "Seek":
		if req.SeekPosition == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "seek_position_ms required for Seek")
		}
		p := s.registry.Primary()
		if p == nil {
			return errs.New(errs.NotFound, "httpapi.UpdatePlayback", "no active primary source")
		}
		if err := p.Seek(msToDuration(*req.SeekPosition)); err != nil {
			return err
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action: "+req.Action)
	}

	dto := s.registry.BuildPlaybackState(s.mixer.MasterBalance(), s.mixer.MasterMute())
	dto.Volume = s.mixer.MasterGain()
	return c.JSON(http.StatusOK, dto)
}

func (s *Server) handleNowPlaying(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.BuildNowPlaying())
}

// --- Volume (spec §6) ---

func (s *Server) handleGetVolume(c echo.Context) error {
	return c.JSON(http.StatusOK, volumeDto{
		Volume:  s.mixer.MasterGain(),
		IsMuted: s.mixer.MasterMute(),
		Balance: s.mixer.MasterBalance(),
	})
}

func (s *Server) handleSetVolume(c echo.Context) error {
	var req volumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "volume out of range [0,1]")
		}
		s.mixer.SetMasterGain(*req.Volume)
	}
	if req.Balance != nil {
		if *req.Balance < -1 || *req.Balance > 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "balance out of range [-1,1]")
		}
		s.mixer.SetMasterBalance(*req.Balance)
	}
	if req.Muted != nil {
		s.mixer.SetMasterMute(*req.Muted)
	}
	return c.JSON(http.StatusOK, volumeDto{
		Volume:  s.mixer.MasterGain(),
		IsMuted: s.mixer.MasterMute(),
		Balance: s.mixer.MasterBalance(),
	})
}

// --- Sources (spec §6) ---

type sourceDto struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state"`
}

func (s *Server) handleListSources(c echo.Context) error {
	all := s.registry.All()
	out := make([]sourceDto, len(all))
	for i, src := range all {
		out[i] = sourceDto{ID: src.ID(), Name: src.Name(), Type: src.Type(), State: src.State().String()}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetPrimary(c echo.Context) error {
	p := s.registry.Primary()
	if p == nil {
		return errs.New(errs.NotFound, "httpapi.GetPrimary", "no active primary source")
	}
	return c.JSON(http.StatusOK, sourceDto{ID: p.ID(), Name: p.Name(), Type: p.Type(), State: p.State().String()})
}

func (s *Server) handleSelectSource(c echo.Context) error {
	var req selectSourceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id is required")
	}
	if err := s.registry.SetPrimaryAndPlay(req.SourceID); err != nil {
		return err
	}
	p := s.registry.Primary()
	return c.JSON(http.StatusOK, sourceDto{ID: p.ID(), Name: p.Name(), Type: p.Type(), State: p.State().String()})
}
