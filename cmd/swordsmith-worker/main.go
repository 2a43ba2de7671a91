package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swordsmith/internal/catalog"
	"swordsmith/internal/config"
	"swordsmith/internal/db"
	"swordsmith/internal/game"
	"swordsmith/internal/store/pgstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(pgstore.New(pool, logger), catalog.NewPostgres(pool), logger)

	if cfg.RunOnce {
		if err := resetCounters(ctx, svc, logger); err != nil {
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	resetTicker := time.NewTicker(cfg.ResetEvery)
	defer resetTicker.Stop()

	logger.Info("worker started", "reset_every", cfg.ResetEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-resetTicker.C:
			_ = resetCounters(ctx, svc, logger)
		}
	}
}

func resetCounters(ctx context.Context, svc *game.Service, logger *slog.Logger) error {
	n, err := svc.ResetDailyCounters(ctx)
	if err != nil {
		logger.Error("daily counter reset failed", "err", err)
		return err
	}
	logger.Info("daily counters reset", "accounts", n)
	return nil
}
