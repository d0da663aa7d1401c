package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/api/transport"
	"github.com/fastygo/groupbuy/internal/infrastructure/monitor"
	"github.com/fastygo/groupbuy/pkg/httpcontext"
)

// StatusReporter exposes the last connectivity snapshot.
type StatusReporter interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	reporter StatusReporter
	store    string
	started  time.Time
}

type healthPayload struct {
	Store     string                         `json:"store"`
	Checks    map[string]monitor.CheckResult `json:"checks"`
	LastCheck time.Time                      `json:"lastCheck"`
	Uptime    string                         `json:"uptime"`
	Timestamp time.Time                      `json:"timestamp"`
}

// NewHealthHandler reports the backing store named by store together with
// the reporter's checks.
func NewHealthHandler(reporter StatusReporter, store string, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		reporter:    reporter,
		store:       store,
		started:     time.Now(),
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.reporter.GetStatus()
	now := h.now()
	payload := healthPayload{
		Store:     h.store,
		Checks:    status.Checks,
		LastCheck: status.LastCheck,
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
		Timestamp: now,
	}

	if status.Online {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.logger.Warn("health check degraded", zap.Any("checks", status.Checks))
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "campaign store unreachable", payload))
}
