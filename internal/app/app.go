// Package app wires the plashr components from a loaded configuration.
// It is shared by the CLI and the proxy.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/plashr/plashr/internal/config"
	"github.com/plashr/plashr/pkg/auth"
	"github.com/plashr/plashr/pkg/client"
	"github.com/plashr/plashr/pkg/logging"
	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/report"
	"github.com/plashr/plashr/pkg/settings"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Redis    *redis.Client
	Reporter report.Reporter
	Settings *settings.Store

	// Auth is nil when no OAuth secret is configured.
	Auth *auth.Manager

	// Client and API are nil until Connect.
	Client *client.Client
	API    *unsplash.API

	closers []func() error
}

// New sets up logging, Redis, reporting and the settings store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Redis:    rdb,
		Settings: settings.NewStore(rdb, logger),
		closers:  []func() error{rdb.Close},
	}

	reporters := []report.Reporter{report.NewLogReporter(logger)}
	if cfg.Kafka.Enabled {
		kr, err := report.NewKafkaReporter(report.DefaultKafkaConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka reporter: %w", err)
		}
		reporters = append(reporters, kr)
		a.closers = append([]func() error{kr.Close}, a.closers...)
	}
	a.Reporter = report.Multi(reporters...)

	if cfg.API.SecretKey != "" {
		m, err := auth.NewManager(auth.Config{
			ClientID:     cfg.API.AccessKey,
			ClientSecret: cfg.API.SecretKey,
			RedirectURL:  cfg.API.RedirectURL,
			AuthURL:      cfg.API.AuthURL,
			TokenURL:     cfg.API.TokenURL,
		}, rdb, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Auth = m
	}

	return a, nil
}

// Connect creates the API client, authenticated when a token is stored.
func (a *App) Connect(ctx context.Context) error {
	if err := a.Config.RequireAPI(); err != nil {
		return err
	}

	cc := client.DefaultConfig(a.Redis, a.Config.API.AccessKey)
	cc.BaseURL = a.Config.API.BaseURL
	cc.Timeout = a.Config.API.Timeout
	cc.MaxRetries = a.Config.API.MaxRetries

	if a.Auth != nil {
		ts, err := a.Auth.TokenSource(ctx)
		switch {
		case err == nil:
			scope, err := a.Auth.Scope(ctx)
			if err != nil {
				return fmt.Errorf("load token: %w", err)
			}
			cc.TokenSource = ts
			cc.Scope = scope
		case !errors.Is(err, auth.ErrNotLoggedIn):
			return fmt.Errorf("load token: %w", err)
		}
	}

	c, err := client.New(cc)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	a.Client = c
	a.closers = append([]func() error{c.Close}, a.closers...)

	a.API = unsplash.New(c, unsplash.Options{
		PageSize: a.Config.API.PageSize,
		Reporter: a.Reporter,
		Logger:   &a.Logger,
	})
	return nil
}

// Printer returns a message printer for the stored locale.
func (a *App) Printer(ctx context.Context) *message.Printer {
	s, err := a.Settings.Get(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to read settings, using defaults")
	}
	return message.NewPrinter(s.Locale)
}

// Close releases everything in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
