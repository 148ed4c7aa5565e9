package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshu-sajeev/brokerjobs/internal/app"
	"github.com/joshu-sajeev/brokerjobs/internal/worker"
)

func main() {
	log.Println("Starting Worker...")

	ctx := context.Background()
	a, err := app.Build(ctx)
	if err != nil {
		log.Fatal("Failed to start:", err)
	}
	defer a.Close()

	w, err := worker.New(a.Orchestrator, a.Config.Trigger.Schedule, a.Config.TickTimeout, a.Logger)
	if err != nil {
		log.Fatal("Failed to schedule ticks:", err)
	}

	w.Start()
	log.Println("Worker active. Press Ctrl+C to stop.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	w.Stop()
	log.Println("Shutdown complete.")
}
