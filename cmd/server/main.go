// Package main is the entry point for the casino-core API server. It wires
// the wallet engine, the two-tier cache, and the AML pipeline, and starts the
// HTTP server alongside the background task runner.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // postgres driver
	"github.com/nitebet/casino-core/internal/api"
	"github.com/nitebet/casino-core/internal/cache"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/nitebet/casino-core/internal/crypto"
	"github.com/nitebet/casino-core/internal/events"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/scheduler"
	"github.com/nitebet/casino-core/internal/service"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	_ = godotenv.Load()
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting casino-core server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 5. Cache + event bus ──────────────────────────────────────────────────
	kv, err := cache.NewRedisKV(ctx, cfg.Cache.RedisURL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	c, err := cache.New(kv, &cfg.Cache, logger)
	if err != nil {
		logger.Error("cache init failed", "err", err)
		os.Exit(1)
	}
	go c.ListenWalletUpdates(ctx)
	logger.Info("cache connected", "l1_size", cfg.Cache.L1Size)

	bus := events.NewBus(kv, logger)

	// ── 6. Background runner ──────────────────────────────────────────────────
	runner := scheduler.NewRunner(4, 256, logger)
	runner.Start(ctx)

	// ── 7. Repositories ───────────────────────────────────────────────────────
	sealer, err := crypto.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Error("sealer init failed", "err", err)
		os.Exit(1)
	}
	playerRepo := repository.NewPlayerRepository(db, sealer)
	walletRepo := repository.NewWalletRepository(db)
	amlRepo := repository.NewAMLRepository(db)

	// ── 8. Services ───────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(db, playerRepo, walletRepo, cfg)
	amlSvc := service.NewAMLService(amlRepo, walletRepo, playerRepo, bus, runner, logger)
	walletSvc := service.NewWalletService(db, playerRepo, walletRepo, c, bus, runner, logger)

	// ── 9. HTTP router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:   authSvc,
		WalletSvc: walletSvc,
		AMLSvc:    amlSvc,
		Cfg:       cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	runner.Stop()
	_ = kv.Close()
	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
