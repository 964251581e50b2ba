package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// canonicalSection maps the REST path's lower-case section name to the
// title-cased section names internal/config.Manager.Update expects.
func canonicalSection(s string) string {
	switch strings.ToLower(s) {
	case "audio":
		return "Audio"
	case "visualizer":
		return "Visualizer"
	case "output":
		return "Output"
	default:
		return s
	}
}

func (s *Server) handleGetConfig(c echo.Context) error {
	full, err := s.cfg.Get()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, full)
}

func (s *Server) handleUpdateConfigSection(c echo.Context) error {
	section := c.Param("section")
	if section == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "section is required")
	}
	var req configSectionUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	if err := s.cfg.Update(canonicalSection(section), req.Key, req.Value); err != nil {
		return err
	}
	full, err := s.cfg.Get()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, full)
}
