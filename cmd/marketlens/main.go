package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command for the MarketLens CLI.
var rootCmd = &cobra.Command{
	Use:   "marketlens",
	Short: "MarketLens deep-analysis engine",
	Long: `MarketLens fits trend channels, rolling-return statistics, Monte Carlo
forecasts and strategy comparisons on daily price history, and serves them
over a JSON API.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML config file")
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
