package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"audiorack/internal/errs"
	"audiorack/internal/source"
)

// streamingService resolves sourceID to a *source.StreamingService,
// the only variant search/browse applies to (spec §6 Streaming row).
func (s *Server) streamingService(sourceID string) (*source.StreamingService, error) {
	src, err := s.registry.Get(sourceID)
	if err != nil {
		return nil, err
	}
	ss, ok := src.(*source.StreamingService)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "httpapi.streamingService", "source is not a StreamingService: "+sourceID)
	}
	return ss, nil
}

func parseSearchTypes(raw string) []source.SearchType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]source.SearchType, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, source.SearchType(p))
		}
	}
	return out
}

// handleStreamingSearch implements spec §6 Streaming row's
// "search(query, types)".
func (s *Server) handleStreamingSearch(c echo.Context) error {
	ss, err := s.streamingService(c.QueryParam("source_id"))
	if err != nil {
		return err
	}
	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	results, err := ss.Search(c.Request().Context(), query, parseSearchTypes(c.QueryParam("types")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSearchResultsDto(results))
}

// handleStreamingBrowseCategories implements spec §6 Streaming row's
// "browse categories".
func (s *Server) handleStreamingBrowseCategories(c echo.Context) error {
	ss, err := s.streamingService(c.QueryParam("source_id"))
	if err != nil {
		return err
	}
	cats, err := ss.BrowseCategories(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]categoryDto, len(cats))
	for i, cat := range cats {
		out[i] = toCategoryDto(cat)
	}
	return c.JSON(http.StatusOK, out)
}

// handleStreamingBrowseCategoryPlaylists implements spec §6 Streaming
// row's "browse ... category playlists".
func (s *Server) handleStreamingBrowseCategoryPlaylists(c echo.Context) error {
	ss, err := s.streamingService(c.QueryParam("source_id"))
	if err != nil {
		return err
	}
	lists, err := ss.BrowseCategoryPlaylists(c.Request().Context(), c.Param("category_id"))
	if err != nil {
		return err
	}
	out := make([]playlistDto, len(lists))
	for i, p := range lists {
		out[i] = toPlaylistDto(p)
	}
	return c.JSON(http.StatusOK, out)
}

// handleStreamingBrowseUserPlaylists implements spec §6 Streaming row's
// "browse ... user playlists".
func (s *Server) handleStreamingBrowseUserPlaylists(c echo.Context) error {
	ss, err := s.streamingService(c.QueryParam("source_id"))
	if err != nil {
		return err
	}
	lists, err := ss.BrowseUserPlaylists(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]playlistDto, len(lists))
	for i, p := range lists {
		out[i] = toPlaylistDto(p)
	}
	return c.JSON(http.StatusOK, out)
}

// handleStreamingPlaylistDetails implements spec §6 Streaming row's
// "browse ... playlist details". The playlist URI is passed as a query
// parameter since provider URIs (e.g. "spotify:playlist:...") are not
// safe path segments.
func (s *Server) handleStreamingPlaylistDetails(c echo.Context) error {
	ss, err := s.streamingService(c.QueryParam("source_id"))
	if err != nil {
		return err
	}
	uri := c.QueryParam("playlist_uri")
	if uri == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "playlist_uri is required")
	}
	details, err := ss.BrowsePlaylistDetails(c.Request().Context(), uri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPlaylistDetailsDto(details))
}
