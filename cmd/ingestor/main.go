package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwolfsohn/Atlas-Sentinel/app"
	"github.com/jwolfsohn/Atlas-Sentinel/config"
	"github.com/jwolfsohn/Atlas-Sentinel/orchestrator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	engine, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	defer engine.Close()

	// HTTP health + metrics
	go serveHTTP(cfg.Server.MetricsAddr, engine.Runner)

	log.Printf("ingestor running: interval=%s backoff=%s model=%s storage=%s",
		cfg.Ingest.Interval(), cfg.Ingest.Backoff(), engine.Aggregator.ModelName(), cfg.Storage.Driver)

	engine.Runner.Start(ctx)
	<-ctx.Done()
	log.Printf("ingestor shutting down")
}

type statusReporter interface {
	Status() orchestrator.RunnerStatus
}

func newMux(runner statusReporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := runner.Status()
		if status.Cycles > 0 && status.Failures == status.Cycles {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "degraded: %s", status.LastError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

func serveHTTP(addr string, runner statusReporter) {
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(runner),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("metrics server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("metrics server failed: %v", err)
	}
}
