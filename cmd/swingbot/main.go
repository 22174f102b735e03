// Package main runs the swing trading bot: one symbol, one position,
// a decision cycle on a timer, and a status API on the side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swingdesk/swingbot/internal/api"
	"github.com/swingdesk/swingbot/internal/bandit"
	"github.com/swingdesk/swingbot/internal/broker"
	"github.com/swingdesk/swingbot/internal/clock"
	"github.com/swingdesk/swingbot/internal/config"
	"github.com/swingdesk/swingbot/internal/market"
	"github.com/swingdesk/swingbot/internal/metrics"
	"github.com/swingdesk/swingbot/internal/orchestrator"
	"github.com/swingdesk/swingbot/internal/report"
	"github.com/swingdesk/swingbot/internal/risk"
	"github.com/swingdesk/swingbot/internal/sentiment"
	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/internal/strategy"
)

const liveOKFile = "LIVE_OK.txt"

func main() {
	paperMode := flag.Bool("paper", true, "Paper trading mode")
	liveMode := flag.Bool("live", false, "Live trading mode (requires TRADING_MODE=live and LIVE_OK.txt)")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	symbol := flag.String("symbol", "", "Pin a trading pair, e.g. BTC/USDT (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env", zap.Error(err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}

	// --live wins over the default --paper=true.
	live := *liveMode
	if live {
		if err := checkLiveGate(); err != nil {
			logger.Fatal("live trading gate failed", zap.Error(err))
		}
	} else if !*paperMode {
		logger.Fatal("one of --paper or --live must be enabled")
	}

	logger.Info("starting swingbot",
		zap.String("symbol", cfg.Symbol),
		zap.String("timeframe", cfg.Timeframe),
		zap.Bool("live", live),
		zap.Bool("once", *once))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(logger, cfg.DataDir)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	clk := clock.New(clock.ModeLive)
	marketClient := market.NewClient(logger, cfg.Exchange.BaseURL)
	scanner := market.NewScanner(logger, marketClient, cfg.Exchange.MinQuoteVolume)

	var (
		activeBroker broker.Broker
		stops        orchestrator.StopChecker
	)
	if live {
		exch := market.NewBinanceExchange(logger, cfg.Exchange.BaseURL,
			os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		liveBroker, err := broker.NewLive(logger, st, exch, cfg.Symbol)
		if err != nil {
			logger.Fatal("live broker init failed", zap.Error(err))
		}
		if err := liveBroker.Sync(ctx); err != nil {
			logger.Fatal("exchange state does not match local state", zap.Error(err))
		}
		activeBroker, stops = liveBroker, liveBroker
	} else {
		paperBroker, err := broker.NewPaper(logger, st, clk, broker.PaperConfig{
			InitialBalance: decimal.NewFromFloat(cfg.Paper.InitialBalance),
			Slippage:       decimal.NewFromFloat(cfg.Paper.Slippage),
			Fee:            decimal.NewFromFloat(cfg.Paper.Fee),
		})
		if err != nil {
			logger.Fatal("paper broker init failed", zap.Error(err))
		}
		activeBroker, stops = paperBroker, paperBroker
	}

	breaker := risk.NewCircuitBreaker(logger, risk.BreakerConfig{
		DailyLossLimitPercent: cfg.Risk.DailyLossLimitPercent,
		ConsecutiveLossLimit:  cfg.Risk.ConsecutiveLossLimit,
		APIFailureLimit:       cfg.Risk.APIFailureLimit,
		AllowExitsWhenTripped: cfg.Risk.AllowExitsWhenTripped,
	})
	selector := bandit.NewSelector(logger, st, strategy.NumArms(),
		cfg.Bandit.ExplorationProb, cfg.Bandit.JitterStdDev, nil)
	reporter, err := report.NewDaily(logger, st, cfg.ReportDir)
	if err != nil {
		logger.Fatal("reporter init failed", zap.Error(err))
	}
	m := metrics.New()

	orch := orchestrator.New(logger, &cfg, orchestrator.Deps{
		Clock:     clk,
		Broker:    activeBroker,
		Stops:     stops,
		Market:    marketClient,
		Scanner:   scanner,
		Store:     st,
		Risk:      risk.NewEngine(logger, cfg.Risk.RiskPerTradePercent, cfg.Risk.MaxOpenPositions),
		Breaker:   breaker,
		Selector:  selector,
		Metrics:   m,
		Sentiment: sentiment.NewFearGreedClient(logger, ""),
		Events:    sentiment.NewEventProbabilityClient(logger, ""),
		Reporter:  reporter,
	})

	if *once {
		if err := orch.RunCycle(ctx); err != nil {
			logger.Error("cycle failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	server := api.NewServer(logger, cfg.API, orch, st, breaker, m.Handler())
	orch.SetHub(server.Hub())
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
			cancel()
		}
	}()

	orch.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	logger.Info("swingbot stopped")
}

// checkLiveGate requires an explicit double opt-in before real money
// moves: the env var and a marker file the operator creates by hand.
func checkLiveGate() error {
	if os.Getenv("TRADING_MODE") != "live" {
		return fmt.Errorf("TRADING_MODE must be set to \"live\"")
	}
	if _, err := os.Stat(liveOKFile); err != nil {
		return fmt.Errorf("%s not found: create it to confirm live trading", liveOKFile)
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
