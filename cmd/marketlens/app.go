package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"MarketLens/internal/analysis"
	"MarketLens/internal/cache"
	"MarketLens/internal/collector"
	"MarketLens/internal/config"
	"MarketLens/internal/logging"
	"MarketLens/internal/metrics"
	"MarketLens/internal/notifier"
	"MarketLens/internal/recorder"
	"MarketLens/internal/scheduler"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	logs     *logging.RingBuffer
	metrics  *metrics.Metrics
	cache    cache.Cache
	purger   scheduler.Purger
	recorder recorder.Recorder
	analyzer *analysis.Analyzer
	market   *analysis.Market
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger, logs := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Console:    cfg.Log.Console,
		BufferSize: cfg.Log.BufferSize,
	})
	a := &app{cfg: cfg, logger: logger, logs: logs, metrics: metrics.New()}

	fetchers := []collector.Fetcher{newFetcher(cfg, cfg.DataSource.Primary)}
	if cfg.DataSource.Secondary != "" && cfg.DataSource.Secondary != cfg.DataSource.Primary {
		fetchers = append(fetchers, newFetcher(cfg, cfg.DataSource.Secondary))
	}
	for _, f := range fetchers {
		logger.Info().Str("source", f.Name()).Msg("data source enabled")
	}
	chain := collector.NewChain(collector.BreakerSettings{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Breaker.OpenTimeout,
	}, logger, a.metrics, fetchers...)

	if err := a.openCache(ctx); err != nil {
		return nil, err
	}
	a.openRecorder()

	col := collector.NewCollector(chain, a.cache, cfg.Cache.SeriesTTL, a.metrics, logger)
	a.analyzer = analysis.NewAnalyzer(col, a.cache, a.recorder, a.metrics, logger, analysis.Options{
		MinPoints:      cfg.Analysis.MinPoints,
		Paths:          cfg.Analysis.Paths,
		Samples:        cfg.Analysis.Samples,
		Bins:           cfg.Analysis.Bins,
		HistoryLen:     cfg.Analysis.HistoryLen,
		ActualPastDays: cfg.Analysis.ActualPastDays,
		MaxLookback:    cfg.Analysis.MaxLookback,
		MaxHorizon:     cfg.Analysis.MaxHorizon,
		CacheTTL:       cfg.Cache.ResponseTTL,
	})
	a.market = analysis.NewMarket(col, a.recorder, logger, cfg.Market.Basket, cfg.Market.Concurrency)
	return a, nil
}

func newFetcher(cfg *config.Config, name string) collector.Fetcher {
	switch name {
	case "rest":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, cfg.DataSource.RPS)
	case "mock":
		return &collector.MockFetcher{Price: 100, Days: 1500}
	default:
		return collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.RPS)
	}
}

func (a *app) openCache(ctx context.Context) error {
	cfg := a.cfg.Cache
	var backend cache.Cache
	switch cfg.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "marketlens:")
		if err != nil {
			return fmt.Errorf("open redis cache: %w", err)
		}
		backend = r
	case "sqlite":
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return err
		}
		s, err := cache.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite cache: %w", err)
		}
		backend, a.purger = s, s
	default:
		m := cache.NewMemory()
		backend, a.purger = m, m
	}
	a.cache = cache.WithMetrics(backend, cfg.Backend, a.metrics)
	a.logger.Info().Str("backend", cfg.Backend).Msg("cache ready")
	return nil
}

// openRecorder falls back to the noop recorder when SQLite is unavailable.
func (a *app) openRecorder() {
	path := a.cfg.Database.SQLitePath
	if path == "" {
		a.recorder = recorder.NewNoopRecorder()
		return
	}
	if err := ensureDir(path); err != nil {
		a.logger.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		a.recorder = recorder.NewNoopRecorder()
		return
	}
	sr, err := recorder.NewSQLiteRecorder(path, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		a.recorder = recorder.NewNoopRecorder()
		return
	}
	a.recorder = sr
}

// newScheduler builds the watchlist scheduler. tn may be nil.
func (a *app) newScheduler(ctx context.Context, tn *notifier.TelegramNotifier) *scheduler.Scheduler {
	s := scheduler.NewScheduler(ctx, a.analyzer, a.market, tn, a.purger, a.cfg.Schedule.Watchlist, a.logger)
	s.Lookback = a.cfg.Analysis.Lookback
	s.Horizon = a.cfg.Analysis.Horizon
	return s
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	return nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close recorder")
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close cache")
	}
}
