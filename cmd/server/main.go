// Package main is the entry point for the coins-catcher ledger service.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coins-catcher/internal/bot"
	"coins-catcher/internal/config"
	"coins-catcher/internal/httpapi"
	"coins-catcher/internal/metrics"
	"coins-catcher/internal/pkg/db"
	"coins-catcher/internal/pricing"
	"coins-catcher/internal/repository"
	"coins-catcher/internal/repository/memstore"
	"coins-catcher/internal/service"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)
	log.Info().Str("driver", cfg.Database.Driver).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	estimator := pricing.NewEstimator(cfg.Estimator.Endpoint, cfg.Estimator.APIKey, cfg.Estimator.Model, cfg.Estimator.Timeout)
	svc, err := service.New(store, cfg, estimator)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create services")
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("Empty auth.jwt_secret, every API request will be rejected")
	}
	server := httpapi.New(cfg, svc, store)
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP API listening")
		serverErr <- server.Listen(cfg.Server.Addr)
	}()

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(cfg, svc)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go telegramBot.Start()
	} else {
		log.Info().Msg("Telegram bot disabled, bot.token not set")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP API stopped")
		}
	}

	if telegramBot != nil {
		telegramBot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP API shutdown failed")
	}
	log.Info().Msg("Stopped gracefully")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// openStore connects the configured store. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("Using the in-memory store, data is lost on exit")
		s := memstore.New(
			memstore.WithLockTimeout(cfg.Database.LockTimeout),
			memstore.WithRetries(cfg.Database.TxRetries),
		)
		return s, s.Close, nil
	case "postgres":
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		s := repository.NewPostgresStore(pool.Pool,
			repository.WithRetries(cfg.Database.TxRetries),
			repository.WithRetryObserver(metrics.RecordTxRetry),
		)
		return s, func() {
			s.Close()
			pool.Close()
		}, nil
	}
	return nil, nil, errors.New("unknown database driver " + cfg.Database.Driver)
}
