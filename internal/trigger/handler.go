// Package trigger exposes the tick endpoint called by the external timer.
package trigger

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/brokerjobs/common"
	"github.com/joshu-sajeev/brokerjobs/internal/orchestrator"
	"github.com/joshu-sajeev/brokerjobs/internal/ratelimit"
)

type Ticker interface {
	Tick(ctx context.Context) orchestrator.Report
}

type Handler struct {
	ticker  Ticker
	limiter ratelimit.Limiter
	secret  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(t Ticker, limiter ratelimit.Limiter, secret string, timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ticker: t, limiter: limiter, secret: secret, timeout: timeout, logger: logger}
}

// RegisterRoutes mounts the trigger. Both verbs are accepted since timers
// differ in what they send.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/cron/tick", h.Tick)
	r.POST("/cron/tick", h.Tick)
}

// Tick authenticates the caller and runs one tick. Any authenticated call
// gets 200 with the report, whatever the jobs did.
func (h *Handler) Tick(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.ClientIP()

	blocked, err := h.limiter.Blocked(ctx, key)
	if err != nil {
		h.logger.Warn("trigger.limiter.error", "error", err)
	}
	if blocked {
		h.logger.Warn("trigger.locked_out", "client", key)
		c.Error(common.Errf(http.StatusTooManyRequests, "too many failed attempts"))
		return
	}

	if !h.authorized(c.GetHeader("Authorization")) {
		if err := h.limiter.Fail(ctx, key); err != nil {
			h.logger.Warn("trigger.limiter.error", "error", err)
		}
		h.logger.Warn("trigger.unauthorized", "client", key)
		c.Error(common.Errf(http.StatusUnauthorized, "unauthorized"))
		return
	}
	if err := h.limiter.Reset(ctx, key); err != nil {
		h.logger.Warn("trigger.limiter.error", "error", err)
	}

	tickCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	report := h.ticker.Tick(tickCtx)
	c.JSON(http.StatusOK, report)
}

func (h *Handler) authorized(header string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
