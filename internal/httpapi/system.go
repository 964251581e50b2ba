package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// systemStatsDto mirrors spec §6's System "stats" DTO. Only RAMMb
// (runtime.MemStats.Alloc), Threads (goroutine count), uptime and engine
// state are filled in, all process-local; CPUPercent, DiskPercent and
// TemperatureC are always 0. No system-telemetry library appears anywhere
// in the example pack, so this stays on the standard library rather
// than inventing a dependency (see DESIGN.md).
type systemStatsDto struct {
	CPUPercent   float64 `json:"cpu_percent"`
	RAMMb        float64 `json:"ram_mb"`
	DiskPercent  float64 `json:"disk_percent"`
	Threads      int     `json:"threads"`
	AppUptimeSec int64   `json:"app_uptime_seconds"`
	EngineState  string  `json:"engine_state"`
	TemperatureC float64 `json:"temperature_c"`
}

func (s *Server) handleSystemStats(c echo.Context) error {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	engineState := "Idle"
	if p := s.registry.Primary(); p != nil {
		engineState = p.State().String()
	}

	return c.JSON(http.StatusOK, systemStatsDto{
		RAMMb:        float64(mem.Alloc) / (1024 * 1024),
		Threads:      runtime.NumGoroutine(),
		AppUptimeSec: int64(time.Since(s.startedAt).Seconds()),
		EngineState:  engineState,
	})
}
