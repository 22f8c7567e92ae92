// Package config loads MarketLens settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		CORSOrigin   string        `yaml:"cors_origin"`
	} `yaml:"server"`
	DataSource struct {
		Primary   string  `yaml:"primary"`   // yahoo, rest or mock
		Secondary string  `yaml:"secondary"` // optional fallback source
		BaseURL   string  `yaml:"base_url"`  // REST source
		APIKey    string  `yaml:"api_key"`
		RPS       float64 `yaml:"rps"`
	} `yaml:"data_source"`
	Breaker struct {
		ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
		OpenTimeout         time.Duration `yaml:"open_timeout"`
	} `yaml:"breaker"`
	Cache struct {
		Backend       string        `yaml:"backend"` // memory, redis or sqlite
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		SQLitePath    string        `yaml:"sqlite_path"`
		SeriesTTL     time.Duration `yaml:"series_ttl"`
		ResponseTTL   time.Duration `yaml:"response_ttl"`
	} `yaml:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level      string `yaml:"level"`
		Console    bool   `yaml:"console"`
		BufferSize int    `yaml:"buffer_size"`
	} `yaml:"log"`
	Market struct {
		Basket      []string `yaml:"basket"`
		Concurrency int      `yaml:"concurrency"`
	} `yaml:"market"`
	Analysis struct {
		MinPoints      int `yaml:"min_points"`
		Paths          int `yaml:"paths"`
		Samples        int `yaml:"samples"`
		Bins           int `yaml:"bins"`
		HistoryLen     int `yaml:"history_len"`
		ActualPastDays int `yaml:"actual_past_days"`
		Lookback       int `yaml:"lookback"`
		Horizon        int `yaml:"horizon"`
		MaxLookback    int `yaml:"max_lookback"`
		MaxHorizon     int `yaml:"max_horizon"`
	} `yaml:"analysis"`
	Schedule struct {
		Watchlist  []string `yaml:"watchlist"`
		WarmCron   string   `yaml:"warm_cron"`
		DigestCron string   `yaml:"digest_cron"`
		PurgeCron  string   `yaml:"purge_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("MARKETLENS_ADDR", &c.Server.Addr)
	setString("DATA_SOURCE", &c.DataSource.Primary)
	setString("DATA_SOURCE_FALLBACK", &c.DataSource.Secondary)
	setString("REST_BASE_URL", &c.DataSource.BaseURL)
	setString("REST_API_KEY", &c.DataSource.APIKey)
	setString("CACHE_BACKEND", &c.Cache.Backend)
	setString("REDIS_ADDR", &c.Cache.RedisAddr)
	setString("REDIS_PASSWORD", &c.Cache.RedisPassword)
	setString("SQLITE_PATH", &c.Database.SQLitePath)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	setString("HTTPS_PROXY", &c.Proxy)
	setString("CRON_DIGEST", &c.Schedule.DigestCron)

	if v := os.Getenv("DATA_SOURCE_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			c.DataSource.RPS = rps
		}
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Schedule.Watchlist = splitList(v)
	}
	if v := os.Getenv("MARKET_BASKET"); v != "" {
		c.Market.Basket = splitList(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.CORSOrigin == "" {
		c.Server.CORSOrigin = "*"
	}
	if c.DataSource.Primary == "" {
		c.DataSource.Primary = "yahoo"
	}
	if c.DataSource.RPS == 0 {
		c.DataSource.RPS = 5
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 3
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = time.Minute
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/cache.db"
	}
	if c.Cache.SeriesTTL == 0 {
		c.Cache.SeriesTTL = time.Hour
	}
	if c.Cache.ResponseTTL == 0 {
		c.Cache.ResponseTTL = 15 * time.Minute
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/marketlens.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.BufferSize == 0 {
		c.Log.BufferSize = 500
	}
	if c.Market.Concurrency == 0 {
		c.Market.Concurrency = 8
	}
	if c.Analysis.Lookback == 0 {
		c.Analysis.Lookback = 252
	}
	if c.Analysis.Horizon == 0 {
		c.Analysis.Horizon = 252
	}
	if c.Analysis.MaxLookback == 0 {
		c.Analysis.MaxLookback = 2520
	}
	if c.Analysis.MaxHorizon == 0 {
		c.Analysis.MaxHorizon = 2520
	}
	if len(c.Schedule.Watchlist) == 0 {
		c.Schedule.Watchlist = []string{"SPY", "QQQ"}
	}
	if c.Schedule.WarmCron == "" {
		c.Schedule.WarmCron = "0 30 21 * * 1-5"
	}
	if c.Schedule.DigestCron == "" {
		c.Schedule.DigestCron = "0 0 8 * * 1"
	}
	if c.Schedule.PurgeCron == "" {
		c.Schedule.PurgeCron = "0 0 * * * *"
	}
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

var (
	sources  = map[string]bool{"yahoo": true, "rest": true, "mock": true}
	backends = map[string]bool{"memory": true, "redis": true, "sqlite": true}
)

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if !sources[c.DataSource.Primary] {
		return fmt.Errorf("data_source.primary %q is not one of yahoo, rest, mock", c.DataSource.Primary)
	}
	if c.DataSource.Secondary != "" && !sources[c.DataSource.Secondary] {
		return fmt.Errorf("data_source.secondary %q is not one of yahoo, rest, mock", c.DataSource.Secondary)
	}
	if (c.DataSource.Primary == "rest" || c.DataSource.Secondary == "rest") && c.DataSource.BaseURL == "" {
		return fmt.Errorf("data_source.base_url is required for the rest source")
	}
	if c.DataSource.RPS < 0 {
		return fmt.Errorf("data_source.rps must not be negative")
	}
	if !backends[c.Cache.Backend] {
		return fmt.Errorf("cache.backend %q is not one of memory, redis, sqlite", c.Cache.Backend)
	}
	if c.Market.Concurrency < 0 {
		return fmt.Errorf("market.concurrency must not be negative")
	}
	if c.Analysis.Lookback < 0 || c.Analysis.Horizon < 0 {
		return fmt.Errorf("analysis.lookback and analysis.horizon must not be negative")
	}
	if c.Analysis.Lookback > c.Analysis.MaxLookback || c.Analysis.Horizon > c.Analysis.MaxHorizon {
		return fmt.Errorf("analysis.lookback and analysis.horizon must not exceed max_lookback and max_horizon")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, strings.ToUpper(f))
	}
	return out
}
