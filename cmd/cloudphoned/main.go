// Command cloudphoned runs the cloud phone workflow orchestrator as a
// long-running HTTP service: start/stop/clear/status plus an SSE event
// stream (spec §6). Grounded on cmd/shoal/main.go's flag parsing,
// signal-driven graceful shutdown, and server construction.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudphone/internal/cloudphone/bus"
	"cloudphone/internal/cloudphone/client"
	"cloudphone/internal/cloudphone/httpapi"
	"cloudphone/internal/cloudphone/logging"
	"cloudphone/internal/cloudphone/orchestrator"
	"cloudphone/internal/cloudphone/store"
)

func main() {
	var (
		port     = flag.String("port", "8080", "HTTP server port")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		baseURL  = flag.String("provider-base-url", "", "Base URL of the RPA provider API (uses CLOUDPHONE_PROVIDER_URL env var if not set)")
	)
	flag.Parse()

	logger := logging.New(*logLevel)
	slog.SetDefault(logger)

	if *baseURL == "" {
		*baseURL = os.Getenv("CLOUDPHONE_PROVIDER_URL")
	}
	if *baseURL == "" {
		slog.Warn("no provider base URL configured; set --provider-base-url or CLOUDPHONE_PROVIDER_URL")
	}

	b := bus.New()
	st := store.New(b)

	newClient := func(apiToken string) client.API {
		return client.New(client.Config{
			BaseURL: *baseURL,
			Token:   apiToken,
			Timeout: 30 * time.Second,
		})
	}
	orch := orchestrator.Init(newClient, st, b, logger)

	handler := httpapi.New(orch, st, b)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open indefinitely.
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting cloud phone orchestrator server", "port", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server, stopping any active run...")
	orch.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}
