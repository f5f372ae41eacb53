// Command plashr-proxy serves the paginated photo sources as JSON pages,
// sharing the response cache and rate limit state in Redis.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plashr/plashr/internal/app"
	"github.com/plashr/plashr/internal/config"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("PLASHR_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}
	defer a.Close()

	if err := a.Connect(ctx); err != nil {
		a.Logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	srv := &http.Server{
		Addr:              cfg.Proxy.Addr,
		Handler:           NewServer(a.API, a.Client, cfg.API.PageSize, cfg.Proxy.AllowedOrigins, a.Logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", cfg.Proxy.Addr).
			Str("base_url", cfg.API.BaseURL).
			Msg("Starting plashr proxy")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		a.Logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
