package api

import (
	"net/http"

	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthHandler serves the ops surface: liveness, detailed health,
// performance counters, and the configured watchlist.
type HealthHandler struct {
	logger  *xlogger.Logger
	health  *usecase.Health
	symbols []string
}

func NewHealthHandler(logger *xlogger.Logger, health *usecase.Health, symbols []string) *HealthHandler {
	return &HealthHandler{logger: logger, health: health, symbols: symbols}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Live)

	g := e.Group("/api/v1")
	g.GET("/health", h.Health)
	g.GET("/health/performance", h.Performance)
	g.GET("/symbols", h.Symbols)
}

// Live is the bare liveness probe.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Health reports detailed service health. A degraded service answers 503 so
// load balancers rotate it out while the payload still explains why.
func (h *HealthHandler) Health(c echo.Context) error {
	st := h.health.Check(c.Request().Context())
	if st.Status != "healthy" {
		h.logger.Warn("health check degraded")
		return xhttp.ServiceUnavailableResponse(c, st)
	}
	return xhttp.SuccessResponse(c, st)
}

// Performance reports the collector throughput counters.
func (h *HealthHandler) Performance(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.health.Performance())
}

// Symbols lists the configured watchlist, truncated by ?limit.
func (h *HealthHandler) Symbols(c echo.Context) error {
	raw := c.QueryParam("limit")
	limit := xhttp.ParseIntDefault(raw, len(h.symbols))
	if limit < 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid limit %q", raw))
	}
	if limit > len(h.symbols) {
		limit = len(h.symbols)
	}
	return xhttp.ListResponse(c, h.symbols[:limit], int64(len(h.symbols)))
}
