// Package main is the entry point for the Hermes user service. It serves
// the same user lifecycle operations over an HTTP API and a message-pattern
// TCP interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	cachememory "github.com/prn-tf/hermes-users/internal/cache/memory"
	cacheredis "github.com/prn-tf/hermes-users/internal/cache/redis"
	"github.com/prn-tf/hermes-users/internal/config"
	"github.com/prn-tf/hermes-users/internal/handler"
	"github.com/prn-tf/hermes-users/internal/pkg/crypto"
	"github.com/prn-tf/hermes-users/internal/repository"
	"github.com/prn-tf/hermes-users/internal/repository/postgres"
	"github.com/prn-tf/hermes-users/internal/repository/sqlite"
	"github.com/prn-tf/hermes-users/internal/service"
	"github.com/prn-tf/hermes-users/internal/tcp"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting hermes user service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Persistence gateway, driver-selected.
	userRepo, dbHealth, err := newRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbHealth.Close()

	// Optional read-through cache on single-record lookups.
	if cfg.Cache.Enabled {
		cache, cleanup, err := newCache(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		userRepo = repository.NewCachedUserRepository(userRepo, cache, cfg.Cache.TTL, logger)
	}

	users := service.NewUserService(userRepo, crypto.NewBcryptHasher(0), logger)

	var metrics *handler.Metrics
	if cfg.Metrics.Enabled {
		metrics = handler.NewMetrics()
	}

	router := handler.NewRouter(handler.RouterConfig{
		UserHandler:   handler.NewUserHandler(users, logger),
		HealthHandler: handler.NewHealthHandler(dbHealth, Version),
		Metrics:       metrics,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 3)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var msgServer *tcp.Server
	if cfg.TCP.Enabled {
		msgServer = tcp.NewServer(users, metricsObserver(metrics), logger)
		if err := msgServer.Listen(cfg.TCP.Addr()); err != nil {
			return fmt.Errorf("message server: %w", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Str("path", cfg.Metrics.Path).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if msgServer != nil {
		if err := msgServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("message server shutdown failed")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics shutdown failed")
		}
	}

	logger.Info().Msg("service stopped")
	return nil
}

// newRepository builds the configured persistence backend.
func newRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, repository.DatabaseHealth, error) {
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			ConnMaxLifetime: time.Hour,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		// Embedded deployments migrate in-process.
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), db, nil
	}

	db, err := postgres.NewDB(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewUserRepository(db), db, nil
}

// newCache builds the configured cache backend: Redis when enabled,
// otherwise in-process memory.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Cache, func(), error) {
	if cfg.Redis.Enabled {
		cache, err := cacheredis.NewCache(ctx, cacheredis.Config{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return cache, func() { _ = cache.Close() }, nil
	}

	cache := cachememory.NewCache()
	return cache, cache.Stop, nil
}

// metricsObserver adapts an optional Metrics into a tcp.MessageObserver
// without handing the server a typed nil.
func metricsObserver(m *handler.Metrics) tcp.MessageObserver {
	if m == nil {
		return nil
	}
	return m
}

// newLogger configures zerolog per the logging config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
