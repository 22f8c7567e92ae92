package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MarketLens/internal/notifier"
	"MarketLens/internal/scheduler"
	"MarketLens/internal/server"
)

var serveWarmOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduled jobs and Telegram commands",
	Long: `Serve the JSON API and run the cron jobs that warm the watchlist cache,
send the Telegram digest and purge expired cache entries.

Examples:
  marketlens serve
  marketlens serve --config configs/config.yaml --warm`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveWarmOnStart, "warm", os.Getenv("RUN_ON_START") == "true", "Warm the watchlist immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg
	a.logger.Info().Msg("MarketLens starting")

	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, a.logger)
	} else {
		a.logger.Info().Msg("telegram not configured, digest and commands disabled")
	}

	sched := a.newScheduler(ctx, tn)
	if err := sched.RegisterAll(scheduler.Jobs{
		WarmCron:   cfg.Schedule.WarmCron,
		DigestCron: cfg.Schedule.DigestCron,
		PurgeCron:  cfg.Schedule.PurgeCron,
	}); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		a.logger.Info().Msg("telegram polling started")
	}
	if serveWarmOnStart {
		go sched.Warm(ctx)
	}

	srv := server.New(server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigin:   cfg.Server.CORSOrigin,
	}, server.Deps{
		Analyzer: a.analyzer,
		Market:   a.market,
		Logs:     a.logs,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown signal received, stopping")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("http shutdown")
	}
	a.logger.Info().Msg("MarketLens stopped")
	return nil
}
