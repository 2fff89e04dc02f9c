// Command studio runs the video generation engine and its HTTP API.
//
// Configuration comes from the environment (see internal/config). On start
// the process reconciles unfinished jobs left by a previous run; on SIGINT or
// SIGTERM it stops accepting requests, cancels running poll loops (those jobs
// stay in processing and are resumed by the next start) and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meemee/studio/api"
	"github.com/meemee/studio/engine"
	"github.com/meemee/studio/internal/config"
	"github.com/meemee/studio/ledger"
	"github.com/meemee/studio/notify"
	"github.com/meemee/studio/notify/telegram"
	"github.com/meemee/studio/renderer/kie"
	"github.com/meemee/studio/store"
	"github.com/meemee/studio/store/memory"
	"github.com/meemee/studio/store/postgres"
	redisstore "github.com/meemee/studio/store/redis"
	"github.com/meemee/studio/template"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("studio exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──────────────────────────────────────────────────
	// Storage and quota
	// ──────────────────────────────────────────────────

	s, ledg, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ──────────────────────────────────────────────────
	// Templates, renderer, notifications
	// ──────────────────────────────────────────────────

	catalog, err := template.LoadDir(os.DirFS(cfg.TemplatesDir))
	if err != nil {
		return fmt.Errorf("load templates from %s: %w", cfg.TemplatesDir, err)
	}
	logger.Info("templates loaded",
		slog.String("dir", cfg.TemplatesDir),
		slog.Int("count", len(catalog.List())),
	)

	kieOpts := []kie.Option{kie.WithLogger(logger)}
	if cfg.RendererBaseURL != "" {
		kieOpts = append(kieOpts, kie.WithBaseURL(cfg.RendererBaseURL))
	}
	if cfg.RendererModel != "" {
		kieOpts = append(kieOpts, kie.WithModel(cfg.RendererModel))
	}
	if cfg.RendererRateLimit > 0 {
		kieOpts = append(kieOpts, kie.WithRateLimit(cfg.RendererRateLimit, 1))
	}

	var ch notify.Channel
	if cfg.BotToken != "" {
		ch = telegram.New(cfg.BotToken, telegram.WithLogger(logger))
	} else {
		logger.Warn("BOT_TOKEN not set, notifications are only logged")
		ch = notify.NewLogChannel(logger)
	}

	eng, err := engine.New(engine.Deps{
		Store:    s,
		Resolver: template.NewResolver(catalog),
		Renderer: kie.New(cfg.RendererAPIKey, kieOpts...),
		Ledger:   ledg,
		Notifier: notify.NewDispatcher(ch, notify.WithLogger(logger)),
	},
		engine.WithConfig(cfg.Engine),
		engine.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	// ──────────────────────────────────────────────────
	// HTTP API and shutdown
	// ──────────────────────────────────────────────────

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(eng, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		engErr := eng.Stop(shutdownCtx)
		return errors.Join(httpErr, engErr)
	})

	return g.Wait()
}

// openStore selects the backend from cfg. The quota ledger lives in Redis
// for the redis and postgres backends and in memory for the memory backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, ledger.Ledger, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, jobs do not survive restarts")
		return memory.New(), ledger.NewMemory(cfg.FreeQuota), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck // already failing
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	ledg := ledger.NewRedis(rdb, "", cfg.FreeQuota)

	var s store.Store
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("close redis", slog.String("error", err.Error()))
		}
	}

	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithLogger(logger))
		if err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		s = pg
		closeRedis := closeFn
		closeFn = func() {
			if err := pg.Close(); err != nil {
				logger.Warn("close postgres", slog.String("error", err.Error()))
			}
			closeRedis()
		}
	default:
		s = redisstore.New(rdb, redisstore.WithLogger(logger))
	}

	logger.Info("store opened", slog.String("backend", cfg.Store))
	return s, ledg, closeFn, nil
}
