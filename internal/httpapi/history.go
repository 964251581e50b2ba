package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"audiorack/internal/history"
)

type historyEntryDto struct {
	ID       int64  `json:"id"`
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	PlayedAt int64  `json:"played_at_unix"`
}

func toHistoryEntryDto(e history.Entry) historyEntryDto {
	return historyEntryDto{
		ID:       e.ID,
		SourceID: e.SourceID,
		Title:    e.Title,
		Artist:   e.Artist,
		Album:    e.Album,
		PlayedAt: e.PlayedAt.Unix(),
	}
}

func limitParam(c echo.Context, def int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleHistoryRecent(c echo.Context) error {
	entries, err := s.hist.Recent(limitParam(c, 50))
	if err != nil {
		return err
	}
	out := make([]historyEntryDto, len(entries))
	for i, e := range entries {
		out[i] = toHistoryEntryDto(e)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleHistoryBySource(c echo.Context) error {
	sourceID := c.Param("source_id")
	entries, err := s.hist.BySource(sourceID, limitParam(c, 50))
	if err != nil {
		return err
	}
	out := make([]historyEntryDto, len(entries))
	for i, e := range entries {
		out[i] = toHistoryEntryDto(e)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleHistoryStatistics(c echo.Context) error {
	stats, err := s.hist.Statistics()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRecordHistory(c echo.Context) error {
	var req historyRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SourceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id is required")
	}
	if err := s.hist.RecordPlay(req.SourceID, req.Title, req.Artist, req.Album); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}
