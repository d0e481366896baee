package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	database "github.com/sebuszqo/FinanceDashboard/db"
	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/config"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/server"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
	"github.com/sebuszqo/FinanceDashboard/web"
)

const (
	sessionCleanupInterval = time.Minute
	limiterSweepInterval   = 5 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

// openTokenBackend builds the configured token backend. The returned func
// releases whatever connection the backend holds.
func openTokenBackend(cfg *config.Config, logger *applog.Logger) (token.Backend, func(), error) {
	var (
		backend token.Backend
		closeFn = func() {}
	)

	switch cfg.TokenStore {
	case config.TokenStoreSQLite:
		if err := token.MigrateSQLite(cfg.SQLiteDBPath); err != nil {
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		dbService, err := database.NewDBService(database.DriverSQLite, cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		backend = token.NewSQLiteBackend(dbService.DB)
		closeFn = func() { _ = dbService.Close() }
	case config.TokenStorePostgres:
		if err := token.MigratePostgres(cfg.DBConnectionString); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		dbService, err := database.NewDBService(database.DriverPostgres, cfg.DBConnectionString)
		if err != nil {
			return nil, nil, err
		}
		backend = token.NewPostgresBackend(dbService.DB)
		closeFn = func() { _ = dbService.Close() }
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		backend = token.NewRedisBackend(client, cfg.TokenTTL)
		closeFn = func() { _ = client.Close() }
	default:
		backend = token.NewMemoryBackend()
	}

	key, err := cfg.SealKey()
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if key != nil {
		sealed, err := token.NewSealedBackend(backend, key)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		backend = sealed
	}

	logger.Info("Token store ready", applog.FieldBackend, backend.Name())
	return backend, closeFn, nil
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Missing configuration, update to start server: %v", err)
	}

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
		JSON:      cfg.LogJSON,
	})
	applog.SetDefault(logger)

	tokens, closeTokens, err := openTokenBackend(cfg, logger)
	if err != nil {
		logger.Error("Could not initialize token store", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer closeTokens()

	client := api.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.APITimeout}, logger)

	registry := session.NewRegistry(func(clientID string) *session.Session {
		store := token.NewStore(tokens, clientID, logger)
		return session.New(store, client.WithTokens(store),
			session.WithTimeout(cfg.HydrationTimeout),
			session.WithLogger(logger))
	}, cfg.SessionCacheSize, cfg.SessionIdleTTL)
	registry.StartCleanup(sessionCleanupInterval)
	defer registry.Close()

	renderer, err := view.NewRenderer(web.TemplatesFS, logger)
	if err != nil {
		logger.Error("Could not parse templates", applog.FieldError, err.Error())
		os.Exit(1)
	}
	static, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		logger.Error("Could not load static assets", applog.FieldError, err.Error())
		os.Exit(1)
	}

	app := server.New(server.Options{
		Registry: registry,
		Client:   client,
		Renderer: renderer,
		Static:   static,
		Checks: map[string]server.Check{
			"tokens":  tokens.Ping,
			"backend": client.Ping,
		},
		Logger:            logger,
		SecureCookies:     cfg.SecureCookies,
		HydrationWait:     cfg.HydrationWait,
		AuthRatePerMinute: cfg.AuthRatePerMinute,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.APITimeout + 10*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := app.SweepLimiter(); n > 0 {
					logger.Debug("Dropped idle rate limit buckets", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
	}()

	logger.Info("Server starting", "port", cfg.Port, "api", cfg.APIBaseURL, "token_store", cfg.TokenStore)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed to start", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
