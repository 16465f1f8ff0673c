// Package main is the entry point for the casino-core backoffice server: the
// compliance team's AML review surface, on its own port behind an IP
// allow-list.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nitebet/casino-core/internal/backoffice"
	"github.com/nitebet/casino-core/internal/cache"
	"github.com/nitebet/casino-core/internal/config"
	"github.com/nitebet/casino-core/internal/crypto"
	"github.com/nitebet/casino-core/internal/events"
	"github.com/nitebet/casino-core/internal/repository"
	"github.com/nitebet/casino-core/internal/scheduler"
	"github.com/nitebet/casino-core/internal/service"
)

func main() {
	// ── Config + logger ───────────────────────────────────────────────────────
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

	logger.Info("starting casino-core backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
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

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Event bus + runner ────────────────────────────────────────────────────
	kv, err := cache.NewRedisKV(ctx, cfg.Cache.RedisURL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	bus := events.NewBus(kv, logger)

	runner := scheduler.NewRunner(2, 64, logger)
	runner.Start(ctx)

	// ── Repositories + services ───────────────────────────────────────────────
	sealer, err := crypto.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Error("sealer init failed", "err", err)
		os.Exit(1)
	}
	playerRepo := repository.NewPlayerRepository(db, sealer)
	walletRepo := repository.NewWalletRepository(db)
	amlRepo := repository.NewAMLRepository(db)

	authSvc := service.NewAuthService(db, playerRepo, walletRepo, cfg)
	amlSvc := service.NewAMLService(amlRepo, walletRepo, playerRepo, bus, runner, logger)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc: authSvc,
		AMLSvc:  amlSvc,
		Cfg:     cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	runner.Stop()
	_ = kv.Close()
	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
