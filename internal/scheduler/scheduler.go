// Package scheduler runs the periodic watchlist jobs and answers Telegram commands.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"MarketLens/internal/analysis"
	"MarketLens/internal/model"
	"MarketLens/internal/notifier"
)

// Purger drops expired cache entries.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Jobs holds the cron specs (with seconds). An empty spec disables that job.
type Jobs struct {
	WarmCron   string
	DigestCron string
	PurgeCron  string
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Analyzer  *analysis.Analyzer
	Market    *analysis.Market
	Notifier  *notifier.TelegramNotifier // nil when Telegram is not configured
	Purger    Purger                     // nil when the cache cannot purge
	Watchlist []string
	Lookback  int
	Horizon   int
	Ctx       context.Context

	logger zerolog.Logger
	now    func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, an *analysis.Analyzer, mk *analysis.Market, tn *notifier.TelegramNotifier,
	purger Purger, watchlist []string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Analyzer:  an,
		Market:    mk,
		Notifier:  tn,
		Purger:    purger,
		Watchlist: watchlist,
		Ctx:       ctx,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// RegisterAll registers the warm-up, digest and purge tasks.
func (s *Scheduler) RegisterAll(jobs Jobs) error {
	if jobs.WarmCron != "" {
		if _, err := s.Cron.AddFunc(jobs.WarmCron, func() { s.Warm(s.Ctx) }); err != nil {
			return fmt.Errorf("register warm task: %w", err)
		}
	}
	if jobs.DigestCron != "" && s.Notifier != nil {
		if _, err := s.Cron.AddFunc(jobs.DigestCron, s.digestTask); err != nil {
			return fmt.Errorf("register digest task: %w", err)
		}
	}
	if jobs.PurgeCron != "" && s.Purger != nil {
		if _, err := s.Cron.AddFunc(jobs.PurgeCron, s.purgeTask); err != nil {
			return fmt.Errorf("register purge task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) request(ticker string) analysis.DeepRequest {
	return analysis.DeepRequest{Ticker: ticker, Lookback: s.Lookback, Horizon: s.Horizon}
}

// Warm runs a deep analysis for every watchlist ticker, filling the response
// cache. Failed tickers are returned by name.
func (s *Scheduler) Warm(ctx context.Context) ([]*model.DeepAnalysisResponse, []string) {
	s.logger.Info().Int("tickers", len(s.Watchlist)).Msg("warming watchlist")
	var (
		results []*model.DeepAnalysisResponse
		failed  []string
	)
	for _, ticker := range s.Watchlist {
		if ctx.Err() != nil {
			break
		}
		resp, err := s.Analyzer.DeepAnalysis(ctx, s.request(ticker))
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", ticker).Msg("warm analysis failed")
			failed = append(failed, ticker)
			continue
		}
		results = append(results, resp)
	}
	return results, failed
}

// RunDigestNow executes the digest task immediately.
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	s.logger.Info().Msg("running digest task")
	results, failed := s.Warm(s.Ctx)
	if len(results) == 0 && len(failed) == 0 {
		return
	}
	s.trySend(notifier.FormatDigest(s.now(), results, failed))
}

func (s *Scheduler) purgeTask() {
	n, err := s.Purger.Purge(s.Ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cache purge failed")
		return
	}
	s.logger.Info().Int64("removed", n).Msg("cache purged")
}

const helpText = "Available commands:\n" +
	"• /analyze TICKER\n" +
	"• /valuation\n" +
	"• /digest"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch strings.ToLower(fields[0]) {
	case "/analyze":
		if len(fields) < 2 {
			return "Usage: /analyze TICKER"
		}
		resp, err := s.Analyzer.DeepAnalysis(ctx, s.request(fields[1]))
		if err != nil {
			return fmt.Sprintf("❌ %s: %v", strings.ToUpper(fields[1]), err)
		}
		return notifier.FormatAnalysis(resp)
	case "/valuation":
		v, err := s.Market.Valuation(ctx)
		if err != nil {
			return fmt.Sprintf("❌ valuation: %v", err)
		}
		return notifier.FormatValuation(v)
	case "/digest":
		results, failed := s.Warm(ctx)
		return notifier.FormatDigest(s.now(), results, failed)
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error().Err(err).Msg("send notification failed")
	}
}
