// Package httpapi implements the appliance's REST control surface
// (spec §6) as an Echo v4 application, grounded on the teacher's
// server/internal/httpapi/server.go: slog-based request logging
// middleware, middleware.Recover, and a JSON error handler that maps
// the errs.Kind taxonomy to the canonical status codes of spec §7.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"log/slog"

	"audiorack/internal/config"
	"audiorack/internal/devicemgr"
	"audiorack/internal/errs"
	"audiorack/internal/history"
	"audiorack/internal/mixer"
	"audiorack/internal/orchestrator"
	"audiorack/internal/output"
)

// Server is the Echo application exposing the control surface of §6.
type Server struct {
	echo *echo.Echo

	registry *orchestrator.Registry
	mixer    *mixer.Mixer
	devices  *devicemgr.Manager
	cfg      *config.Manager
	hist     *history.Recorder
	stream   *output.HTTPStreamOutput

	startedAt time.Time
}

// New constructs the Echo app and registers every route group of §6,
// plus the audio stream endpoint of §4.6 when stream is non-nil.
func New(registry *orchestrator.Registry, mx *mixer.Mixer, devices *devicemgr.Manager, cfg *config.Manager, hist *history.Recorder, stream *output.HTTPStreamOutput, endpointPath string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{
		echo:      e,
		registry:  registry,
		mixer:     mx,
		devices:   devices,
		cfg:       cfg,
		hist:      hist,
		stream:    stream,
		startedAt: time.Now(),
	}
	s.registerRoutes(endpointPath)
	return s
}

// Echo exposes the underlying Echo instance for tests and for mounting
// onto the runtime's HTTP server.
func (s *Server) Echo() *echo.Echo { return s.echo }

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			slog.Debug("http request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes(endpointPath string) {
	s.echo.GET("/health", s.handleHealth)

	s.echo.GET("/api/playback", s.handleGetPlayback)
	s.echo.POST("/api/playback", s.handleUpdatePlayback)
	s.echo.GET("/api/now-playing", s.handleNowPlaying)

	s.echo.GET("/api/volume", s.handleGetVolume)
	s.echo.PUT("/api/volume", s.handleSetVolume)

	s.echo.GET("/api/sources", s.handleListSources)
	s.echo.GET("/api/sources/primary", s.handleGetPrimary)
	s.echo.POST("/api/sources/select", s.handleSelectSource)

	s.echo.GET("/api/queue", s.handleGetQueue)
	s.echo.POST("/api/queue", s.handleAddToQueue)
	s.echo.DELETE("/api/queue/:index", s.handleRemoveFromQueue)
	s.echo.DELETE("/api/queue", s.handleClearQueue)
	s.echo.POST("/api/queue/move", s.handleMoveQueueItem)
	s.echo.POST("/api/queue/jump/:index", s.handleJumpToIndex)

	s.echo.POST("/api/files/play", s.handlePlayFile)
	s.echo.POST("/api/files/load-directory", s.handleLoadDirectory)

	s.echo.GET("/api/streaming/search", s.handleStreamingSearch)
	s.echo.GET("/api/streaming/categories", s.handleStreamingBrowseCategories)
	s.echo.GET("/api/streaming/categories/:category_id/playlists", s.handleStreamingBrowseCategoryPlaylists)
	s.echo.GET("/api/streaming/playlists", s.handleStreamingBrowseUserPlaylists)
	s.echo.GET("/api/streaming/playlist-details", s.handleStreamingPlaylistDetails)

	s.echo.GET("/api/radio", s.handleGetRadioState)
	s.echo.PUT("/api/radio/frequency", s.handleSetRadioFrequency)
	s.echo.POST("/api/radio/step", s.handleStepRadioFrequency)
	s.echo.PUT("/api/radio/gain", s.handleSetRadioGain)
	s.echo.PUT("/api/radio/auto-gain", s.handleSetRadioAutoGain)
	s.echo.PUT("/api/radio/device-volume", s.handleSetRadioDeviceVolume)
	s.echo.PUT("/api/radio/equalizer-mode", s.handleSetRadioEqualizerMode)
	s.echo.POST("/api/radio/scan/start", s.handleRadioScanStart)
	s.echo.POST("/api/radio/scan/stop", s.handleRadioScanStop)
	s.echo.GET("/api/radio/presets", s.handleListRadioPresets)
	s.echo.POST("/api/radio/presets", s.handleSaveRadioPreset)
	s.echo.DELETE("/api/radio/presets/:id", s.handleDeleteRadioPreset)
	s.echo.POST("/api/radio/presets/:id/recall", s.handleRecallRadioPreset)

	s.echo.GET("/api/devices/outputs", s.handleListOutputDevices)
	s.echo.GET("/api/devices/inputs", s.handleListInputDevices)
	s.echo.GET("/api/devices/default-output", s.handleDefaultOutputDevice)
	s.echo.PUT("/api/devices/output", s.handleSetOutputDevice)
	s.echo.POST("/api/devices/refresh", s.handleRefreshDevices)
	s.echo.GET("/api/devices/usb/:port", s.handleCheckUSBPort)

	s.echo.GET("/api/system/stats", s.handleSystemStats)

	s.echo.GET("/api/history/recent", s.handleHistoryRecent)
	s.echo.GET("/api/history/by-source/:source_id", s.handleHistoryBySource)
	s.echo.GET("/api/history/statistics", s.handleHistoryStatistics)
	s.echo.POST("/api/history", s.handleRecordHistory)

	s.echo.GET("/api/config", s.handleGetConfig)
	s.echo.PUT("/api/config/:section", s.handleUpdateConfigSection)

	if s.stream != nil {
		path := endpointPath
		if path == "" {
			path = "/stream/audio"
		}
		s.echo.GET(path, echo.WrapHandler(http.HandlerFunc(s.stream.ServeHTTP)))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

// jsonErrorHandler maps errs.Kind to the canonical status codes of
// spec §7 (InvalidArgument/IllegalState->400, NotFound->404,
// Conflict->409, NotSupported->501, Timeout->504, External->502,
// Cancelled->499, AlreadyDisposed->410), following the teacher's single
// consistent-JSON-body error handler (server/api.go jsonErrorHandler).
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	} else {
		code = statusForKind(errs.KindOf(err))
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		c.NoContent(code) //nolint:errcheck
		return
	}
	c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
}

func statusForKind(k errs.Kind) int {
	switch k {
	case errs.InvalidArgument, errs.IllegalState:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Conflict:
		return http.StatusConflict
	case errs.NotSupported:
		return http.StatusNotImplemented
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.External:
		return http.StatusBadGateway
	case errs.Cancelled:
		return 499
	case errs.AlreadyDisposed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
