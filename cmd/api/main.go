package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/app"
	"github.com/jwolfsohn/Atlas-Sentinel/config"
	"github.com/jwolfsohn/Atlas-Sentinel/handlers"
	"github.com/jwolfsohn/Atlas-Sentinel/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	engine, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer engine.Close()

	if cfg.Ingest.Enabled {
		engine.Runner.Start(ctx)
	} else {
		log.Printf("background ingestion disabled")
	}

	authService := services.NewAuthService(cfg.JWT)
	router := handlers.NewRouter(engine, authService)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
