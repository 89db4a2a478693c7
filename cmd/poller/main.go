// Command poller is the standalone trigger path: it runs an auto-post sweep
// on a fixed interval without going through the HTTP surface. Deployments
// without a platform cron run this next to the API server; running both is
// safe because overlapping sweeps resolve through the store's claim.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postpilot/internal/bootstrap"
	"postpilot/internal/middleware"

	"github.com/robfig/cron/v3"
)

func main() {
	rt, err := bootstrap.Init("postpilot-poller")
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	interval := rt.Config.PollIntervalSeconds
	if interval <= 0 {
		interval = 60
	}

	c := cron.New()
	_, err = c.AddFunc(fmt.Sprintf("@every %ds", interval), func() {
		report, err := rt.Engine.RunSweep(context.Background(), "poller")
		if err != nil {
			middleware.Logger.Error("sweep failed", "error", err.Error())
			return
		}
		middleware.Logger.Info("sweep complete",
			"sweep_id", report.SweepID,
			"processed", report.Processed,
			"posted", report.Posted,
			"failed", report.Failed,
		)
	})
	if err != nil {
		log.Fatalf("Failed to schedule sweep: %v", err)
	}

	c.Start()
	log.Printf("Poller started, sweeping every %ds", interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down poller...")
	stopCtx := c.Stop()
	// Let an in-flight sweep finish before tearing the runtime down.
	<-stopCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		log.Printf("Runtime shutdown error: %v", err)
	}
}
