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

	"github.com/ahmethakanbesel/tgsearch-api/internal/config"
	"github.com/ahmethakanbesel/tgsearch-api/internal/job"
	"github.com/ahmethakanbesel/tgsearch-api/internal/platform/sqlite"
	"github.com/ahmethakanbesel/tgsearch-api/internal/repository/quota"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
	"github.com/ahmethakanbesel/tgsearch-api/internal/server"
	"github.com/ahmethakanbesel/tgsearch-api/internal/source/tgweb"
)

// quotaRetention is how long sqlite quota rows are kept before pruning.
const quotaRetention = 7 * 24 * time.Hour

func main() {
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so running searches stop
	// promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	quotaStore, closeQuota, err := openQuota(rootCtx, cfg)
	if err != nil {
		slog.Error("failed to open quota store", "backend", cfg.Quota.Backend, "error", err)
		os.Exit(1)
	}
	defer closeQuota()

	client := tgweb.New(
		tgweb.WithBaseURL(cfg.Source.BaseURL),
		tgweb.WithUserAgent(cfg.Source.UserAgent),
		tgweb.WithThrottle(cfg.Search.Throttle),
	)
	searcher := search.NewSearcher(client,
		search.WithConcurrency(cfg.Search.Concurrency),
		search.WithDeduper(search.Deduper{
			Ceiling:   cfg.Search.DedupCeiling,
			Threshold: cfg.Search.DedupThreshold,
			PrefixLen: cfg.Search.DedupPrefix,
		}),
	)

	store := job.NewStore(cfg.Jobs.TTL, cfg.Jobs.MaxJobs)
	limits := search.Limits{
		MaxChannels:   cfg.Search.MaxChannels,
		MaxKeywords:   cfg.Search.MaxKeywords,
		MaxDaysWindow: cfg.Search.MaxDaysWindow,
	}
	jobSvc := job.NewService(store, quotaStore, searcher, limits, cfg.Quota.MaxDailyRuns)

	// Worker pool: picks up pending jobs in the background
	pool := job.NewWorkerPool(store, jobSvc, cfg.Workers)
	jobSvc.SetNotify(pool.Notify)
	poolDone := make(chan struct{})
	go func() {
		pool.Run(rootCtx)
		close(poolDone)
	}()

	go job.NewCollector(store, cfg.Jobs.GCInterval).Run(rootCtx)

	srv := server.New(rootCtx, cfg.Port, jobSvc, cfg.CORSOrigins)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "workers", cfg.Workers, "quota", cfg.Quota.Backend)
	<-done

	// Cancel first so running jobs fail fast and sync searches return.
	rootCancel()
	<-poolDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

func openQuota(ctx context.Context, cfg config.Config) (job.QuotaStore, func(), error) {
	switch cfg.Quota.Backend {
	case "redis":
		rs, err := quota.NewRedisStore(ctx, cfg.Quota.RedisAddr, cfg.Quota.RedisPassword, cfg.Quota.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case "sqlite", "":
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		repo := quota.NewRepository(db.DB)
		cutoff := time.Now().UTC().Add(-quotaRetention).Format(time.DateOnly)
		if n, err := repo.Prune(ctx, cutoff); err != nil {
			slog.Warn("failed to prune quota rows", "error", err)
		} else if n > 0 {
			slog.Info("pruned quota rows", "count", n, "before", cutoff)
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, errors.New("unknown quota backend " + cfg.Quota.Backend)
	}
}
