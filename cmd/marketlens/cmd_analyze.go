package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"MarketLens/internal/analysis"
	"MarketLens/internal/notifier"
)

var (
	analyzeLookback int
	analyzeHorizon  int
	analyzeSeed     uint64
	analyzeFormat   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze TICKER",
	Short: "Run one deep analysis and print it",
	Long: `Run a deep analysis for a single ticker without starting the server.

Examples:
  marketlens analyze SPY
  marketlens analyze QQQ --lookback 126 --horizon 63 --seed 42
  marketlens analyze AAPL --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Analyze every watchlist ticker once and print a digest",
	RunE:  runWarm,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, warmCmd)

	analyzeCmd.Flags().IntVar(&analyzeLookback, "lookback", 0, "Rolling-return window in trading days (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeHorizon, "horizon", 0, "Forecast horizon in trading days (default from config)")
	analyzeCmd.Flags().Uint64Var(&analyzeSeed, "seed", 0, "Fix the simulation seed")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "text", "Output format: text, json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := analysis.DeepRequest{
		Ticker:   args[0],
		Lookback: a.cfg.Analysis.Lookback,
		Horizon:  a.cfg.Analysis.Horizon,
	}
	if analyzeLookback != 0 {
		req.Lookback = analyzeLookback
	}
	if analyzeHorizon != 0 {
		req.Horizon = analyzeHorizon
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &analyzeSeed
	}

	resp, err := a.analyzer.DeepAnalysis(ctx, req)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", strings.ToUpper(args[0]), err)
	}

	switch strings.ToLower(analyzeFormat) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		fmt.Print(notifier.FormatAnalysis(resp))
		for _, w := range resp.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		return nil
	}
}

func runWarm(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, failed := a.newScheduler(ctx, nil).Warm(ctx)
	fmt.Println(notifier.FormatDigest(time.Now(), results, failed))
	if len(results) == 0 && len(failed) > 0 {
		return fmt.Errorf("no watchlist ticker could be analyzed")
	}
	return nil
}
