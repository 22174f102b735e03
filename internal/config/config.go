// Package config loads bot configuration from config.yaml with
// environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full bot configuration.
type Config struct {
	Symbol        string        `mapstructure:"symbol"`
	Timeframe     string        `mapstructure:"timeframe"`
	Lookback      int           `mapstructure:"lookback"`
	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	DataDir       string        `mapstructure:"data_dir"`
	ReportDir     string        `mapstructure:"report_dir"`

	Risk      RiskConfig      `mapstructure:"risk"`
	Bandit    BanditConfig    `mapstructure:"bandit"`
	Paper     PaperConfig     `mapstructure:"paper"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Macro     MacroConfig     `mapstructure:"macro"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	API       APIConfig       `mapstructure:"api"`
}

// RiskConfig bundles risk engine and circuit breaker settings.
type RiskConfig struct {
	RiskPerTradePercent   float64 `mapstructure:"risk_per_trade_percent"`
	MaxOpenPositions      int     `mapstructure:"max_open_positions"`
	DailyLossLimitPercent float64 `mapstructure:"daily_loss_limit_percent"`
	ConsecutiveLossLimit  int     `mapstructure:"consecutive_loss_limit"`
	APIFailureLimit       int     `mapstructure:"api_failure_limit"`
	AllowExitsWhenTripped bool    `mapstructure:"allow_exits_when_tripped"`
}

// BanditConfig configures the arm selector.
type BanditConfig struct {
	ExplorationProb float64 `mapstructure:"exploration_prob"`
	JitterStdDev    float64 `mapstructure:"jitter_stddev"`
}

// PaperConfig configures the fill simulator.
type PaperConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	Slippage       float64 `mapstructure:"slippage"`
	Fee            float64 `mapstructure:"fee"`
}

// SentimentConfig configures the fear & greed gate.
type SentimentConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Threshold int  `mapstructure:"threshold"`
}

// MacroConfig lists event-probability markets feeding the macro risk scale.
type MacroConfig struct {
	MarketIDs []string `mapstructure:"market_ids"`
}

// ExchangeConfig configures the market data / live trading client.
type ExchangeConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	MinQuoteVolume float64       `mapstructure:"min_quote_volume"`
}

// APIConfig configures the status HTTP server.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Symbol:        "BTC/USDT",
		Timeframe:     "5m",
		Lookback:      300,
		CycleInterval: 5 * time.Minute,
		DataDir:       "./data",
		ReportDir:     "./reports",
		Risk: RiskConfig{
			RiskPerTradePercent:   1.0,
			MaxOpenPositions:      1,
			DailyLossLimitPercent: 5.0,
			ConsecutiveLossLimit:  3,
			APIFailureLimit:       5,
			AllowExitsWhenTripped: true,
		},
		Bandit: BanditConfig{
			ExplorationProb: 0.2,
			JitterStdDev:    0.01,
		},
		Paper: PaperConfig{
			InitialBalance: 1000,
			Slippage:       0.001,
			Fee:            0.001,
		},
		Sentiment: SentimentConfig{
			Enabled:   true,
			Threshold: 20,
		},
		Exchange: ExchangeConfig{
			BaseURL:        "https://api.binance.com",
			RequestTimeout: 10 * time.Second,
			RetryAttempts:  2,
			MinQuoteVolume: 10_000_000,
		},
		API: APIConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// Load reads configuration from the given file path (optional) with
// SWINGBOT_ environment variable overrides on top of defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("symbol", def.Symbol)
	v.SetDefault("timeframe", def.Timeframe)
	v.SetDefault("lookback", def.Lookback)
	v.SetDefault("cycle_interval", def.CycleInterval)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("report_dir", def.ReportDir)
	v.SetDefault("risk.risk_per_trade_percent", def.Risk.RiskPerTradePercent)
	v.SetDefault("risk.max_open_positions", def.Risk.MaxOpenPositions)
	v.SetDefault("risk.daily_loss_limit_percent", def.Risk.DailyLossLimitPercent)
	v.SetDefault("risk.consecutive_loss_limit", def.Risk.ConsecutiveLossLimit)
	v.SetDefault("risk.api_failure_limit", def.Risk.APIFailureLimit)
	v.SetDefault("risk.allow_exits_when_tripped", def.Risk.AllowExitsWhenTripped)
	v.SetDefault("bandit.exploration_prob", def.Bandit.ExplorationProb)
	v.SetDefault("bandit.jitter_stddev", def.Bandit.JitterStdDev)
	v.SetDefault("paper.initial_balance", def.Paper.InitialBalance)
	v.SetDefault("paper.slippage", def.Paper.Slippage)
	v.SetDefault("paper.fee", def.Paper.Fee)
	v.SetDefault("sentiment.enabled", def.Sentiment.Enabled)
	v.SetDefault("sentiment.threshold", def.Sentiment.Threshold)
	v.SetDefault("macro.market_ids", []string{})
	v.SetDefault("exchange.base_url", def.Exchange.BaseURL)
	v.SetDefault("exchange.request_timeout", def.Exchange.RequestTimeout)
	v.SetDefault("exchange.retry_attempts", def.Exchange.RetryAttempts)
	v.SetDefault("exchange.min_quote_volume", def.Exchange.MinQuoteVolume)
	v.SetDefault("api.host", def.API.Host)
	v.SetDefault("api.port", def.API.Port)

	v.SetEnvPrefix("SWINGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol must be set")
	}
	if c.Lookback < 60 {
		return fmt.Errorf("config: lookback %d too small for indicator warmup", c.Lookback)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("config: cycle_interval must be positive")
	}
	if c.Risk.RiskPerTradePercent <= 0 || c.Risk.RiskPerTradePercent > 100 {
		return fmt.Errorf("config: risk_per_trade_percent %v out of range (0, 100]", c.Risk.RiskPerTradePercent)
	}
	if c.Risk.MaxOpenPositions < 1 {
		return fmt.Errorf("config: max_open_positions must be at least 1")
	}
	if c.Bandit.ExplorationProb < 0 || c.Bandit.ExplorationProb > 1 {
		return fmt.Errorf("config: bandit exploration_prob %v out of range [0, 1]", c.Bandit.ExplorationProb)
	}
	if c.Paper.Slippage < 0 || c.Paper.Fee < 0 {
		return fmt.Errorf("config: paper slippage and fee must be non-negative")
	}
	return nil
}
