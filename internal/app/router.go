package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/brokerjobs/internal/job"
	"github.com/joshu-sajeev/brokerjobs/internal/trigger"
	"github.com/joshu-sajeev/brokerjobs/middleware"
)

// NewRouter mounts the API. The trigger sits outside the request timeout
// since a tick carries its own, longer, deadline.
func NewRouter(jobs job.JobServiceInterface, tick *trigger.Handler, ping func(context.Context) error, requestTimeout time.Duration, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.ErrorHandler())

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	tick.RegisterRoutes(api)

	timed := api.Group("", middleware.TimeoutMiddleware(requestTimeout))
	job.NewJobHandler(jobs).RegisterRoutes(timed)

	return r
}
