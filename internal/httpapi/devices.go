package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleListOutputDevices(c echo.Context) error {
	devs, err := s.devices.ListOutputs()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, devs)
}

func (s *Server) handleListInputDevices(c echo.Context) error {
	devs, err := s.devices.ListInputs()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, devs)
}

func (s *Server) handleDefaultOutputDevice(c echo.Context) error {
	dev, err := s.devices.DefaultOutput()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dev)
}

func (s *Server) handleSetOutputDevice(c echo.Context) error {
	var req outputDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.devices.SetOutput(req.DeviceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRefreshDevices(c echo.Context) error {
	if err := s.devices.Refresh(); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCheckUSBPort(c echo.Context) error {
	port := c.Param("port")
	return c.JSON(http.StatusOK, map[string]bool{"in_use": s.devices.IsUSBPortInUse(port)})
}
