package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"swordsmith/internal/adverify"
	"swordsmith/internal/api"
	"swordsmith/internal/auth"
	"swordsmith/internal/catalog"
	"swordsmith/internal/config"
	"swordsmith/internal/db"
	"swordsmith/internal/game"
	"swordsmith/internal/store/memstore"
	"swordsmith/internal/store/pgstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	var (
		store   game.Store
		source  catalog.Catalog
		options []api.Option
	)
	switch cfg.Store {
	case config.StoreMemory:
		static, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			logger.Error("catalog load failed", "err", err)
			os.Exit(1)
		}
		store, source = memstore.New(), static
		logger.Warn("running with in-memory store, state is lost on exit")
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store, source = pgstore.New(pool, logger), catalog.NewPostgres(pool)
		options = append(options, api.WithReadiness(pool.Ping))
	}

	cat, err := catalog.NewCached(source, cfg.CatalogCacheTTL)
	if err != nil {
		logger.Error("catalog cache init failed", "err", err)
		os.Exit(1)
	}
	if err := warmCatalog(ctx, cat); err != nil {
		logger.Error("catalog warmup failed", "err", err)
		os.Exit(1)
	}

	tokens := auth.NewVerifier(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer), auth.WithAudience(cfg.JWTAudience))
	ads, err := adverify.New(cfg.AdKeysURL, adverify.WithKeyTTL(cfg.AdKeysTTL), adverify.WithLogger(logger))
	if err != nil {
		logger.Error("ad verifier init failed", "err", err)
		os.Exit(1)
	}

	gameSvc := game.NewService(store, cat, logger)
	server := api.New(logger, tokens, ads, gameSvc, options...)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("swordsmith api listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("swordsmith api stopped")
}

// warmCatalog loads the reference data every request touches so a broken
// catalog fails startup instead of the first player request.
func warmCatalog(ctx context.Context, cat catalog.Catalog) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := cat.Settings(gctx)
		return err
	})
	g.Go(func() error {
		_, err := cat.SwordLevels(gctx)
		return err
	})
	g.Go(func() error {
		_, err := cat.Materials(gctx)
		return err
	})
	g.Go(func() error {
		_, err := cat.DailyMissions(gctx)
		return err
	})
	g.Go(func() error {
		_, err := cat.OneTimeMissions(gctx)
		return err
	})
	return g.Wait()
}
