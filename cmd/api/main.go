package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/brokerjobs/internal/app"
	"github.com/joshu-sajeev/brokerjobs/internal/job"
	"github.com/joshu-sajeev/brokerjobs/internal/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx)
	if err != nil {
		log.Fatal("Failed to start:", err)
	}
	defer a.Close()

	limiter, err := a.Limiter(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	cfg := a.Config
	gin.SetMode(gin.ReleaseMode)

	jobs := job.NewJobService(a.Jobs, a.Matches, a.Files, cfg.Policy.Lease)
	tick := trigger.NewHandler(a.Orchestrator, limiter, cfg.Trigger.Secret, cfg.TickTimeout, a.Logger)
	router := app.NewRouter(jobs, tick, a.Ping, cfg.RequestTimeout, a.Logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("api.listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	slog.Info("api.shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TickTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("api.shutdown.error", "error", err)
	}
}
