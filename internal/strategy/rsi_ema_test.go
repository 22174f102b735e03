package strategy_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/swingdesk/swingbot/internal/indicators"
	"github.com/swingdesk/swingbot/internal/strategy"
	"github.com/swingdesk/swingbot/pkg/types"
)

// entryRow passes every entry condition for the default params.
func entryRow() indicators.Row {
	return indicators.Row{
		Close:      100,
		RSI:        25,
		EMAFast:    101,
		EMASlow:    99,
		ATR:        2,
		ATRPercent: 2,
		ADX:        30,
	}
}

func TestEntrySignal(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	curr := entryRow()

	sig := ev.Evaluate(curr, indicators.Row{}, types.RegimeTrending, strategy.DefaultParams(), 3, false)
	if sig == nil {
		t.Fatal("expected entry signal, got nil")
	}
	if sig.Side != types.SideBuy {
		t.Errorf("expected buy, got %s", sig.Side)
	}
	if sig.Reason != types.ReasonEntry {
		t.Errorf("expected entry reason, got %s", sig.Reason)
	}
	if sig.Arm != 3 {
		t.Errorf("expected arm 3, got %d", sig.Arm)
	}
	if sig.Params == nil {
		t.Fatal("entry signal must carry its parameter set")
	}

	// SL = 100 - 2*2 = 96, TP = 100 + 2*3 = 106.
	if !sig.StopLoss.Equal(decimal.NewFromInt(96)) {
		t.Errorf("expected stop loss 96, got %s", sig.StopLoss)
	}
	if !sig.TakeProfit.Equal(decimal.NewFromInt(106)) {
		t.Errorf("expected take profit 106, got %s", sig.TakeProfit)
	}
}

func TestHighVolatilityVetoesEverything(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	curr := entryRow()

	if sig := ev.Evaluate(curr, indicators.Row{}, types.RegimeHighVol, strategy.DefaultParams(), 0, false); sig != nil {
		t.Errorf("expected no entry in high volatility regime, got %+v", sig)
	}

	// The veto also suppresses technical exits.
	exitRow := indicators.Row{Close: 100, RSI: 80, EMAFast: 90, EMASlow: 99}
	if sig := ev.Evaluate(exitRow, indicators.Row{}, types.RegimeHighVol, strategy.DefaultParams(), 0, true); sig != nil {
		t.Errorf("expected no signal in high volatility regime, got %+v", sig)
	}
}

func TestEntryConditionsAllRequired(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	params := strategy.DefaultParams()

	cases := []struct {
		name   string
		mutate func(*indicators.Row)
	}{
		{"trend filter fails", func(r *indicators.Row) { r.EMAFast = 98 }},
		{"rsi not oversold", func(r *indicators.Row) { r.RSI = 35 }},
		{"volatility ceiling", func(r *indicators.Row) { r.ATRPercent = 5.0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := entryRow()
			tc.mutate(&row)
			if sig := ev.Evaluate(row, indicators.Row{}, types.RegimeTrending, params, 0, false); sig != nil {
				t.Errorf("expected nil, got %+v", sig)
			}
		})
	}
}

func TestExitOrderRSIBeforeTrendFlip(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	params := strategy.DefaultParams()

	// Both exit conditions true: RSI exit must win.
	row := indicators.Row{Close: 110, RSI: 75, EMAFast: 95, EMASlow: 100}
	sig := ev.Evaluate(row, indicators.Row{}, types.RegimeTrending, params, 0, true)
	if sig == nil {
		t.Fatal("expected exit signal")
	}
	if sig.Reason != types.ReasonRSIExit {
		t.Errorf("expected rsi exit to win, got %s", sig.Reason)
	}
	if sig.Side != types.SideSell {
		t.Errorf("expected sell, got %s", sig.Side)
	}
	if !sig.StopLoss.IsZero() || !sig.TakeProfit.IsZero() {
		t.Error("exit signals must carry zero stop/target")
	}
	if !sig.Price.Equal(decimal.NewFromInt(110)) {
		t.Errorf("exit price must be current close, got %s", sig.Price)
	}
}

func TestTrendFlipExit(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	row := indicators.Row{Close: 95, RSI: 50, EMAFast: 94, EMASlow: 100}

	sig := ev.Evaluate(row, indicators.Row{}, types.RegimeRanging, strategy.DefaultParams(), 0, true)
	if sig == nil {
		t.Fatal("expected trend flip exit")
	}
	if sig.Reason != types.ReasonTrendFlip {
		t.Errorf("expected trend flip, got %s", sig.Reason)
	}
}

func TestNoExitWhenConditionsHold(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	row := indicators.Row{Close: 102, RSI: 55, EMAFast: 103, EMASlow: 100}

	if sig := ev.Evaluate(row, indicators.Row{}, types.RegimeTrending, strategy.DefaultParams(), 0, true); sig != nil {
		t.Errorf("expected nil while position healthy, got %+v", sig)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	ev := strategy.NewEvaluator("BTC/USDT")
	curr := entryRow()
	params := strategy.DefaultParams()

	first := ev.Evaluate(curr, indicators.Row{}, types.RegimeTrending, params, 1, false)
	second := ev.Evaluate(curr, indicators.Row{}, types.RegimeTrending, params, 1, false)

	if first == nil || second == nil {
		t.Fatal("expected signals from both evaluations")
	}
	if !first.Price.Equal(second.Price) || !first.StopLoss.Equal(second.StopLoss) || first.Reason != second.Reason {
		t.Error("identical inputs must yield identical signals")
	}
}

func TestCatalog(t *testing.T) {
	arms := strategy.Catalog()
	if len(arms) != 8 {
		t.Fatalf("expected 8 arms, got %d", len(arms))
	}
	if arms[0] != strategy.DefaultParams() {
		t.Error("arm 0 must be the baseline parameter set")
	}
	if arms[5].EMAFast != 50 || arms[5].EMASlow != 200 {
		t.Errorf("arm 5 should be the slow-trend pair, got %+v", arms[5])
	}

	// Out-of-range indexes fall back to the baseline.
	if strategy.Arm(-1) != strategy.DefaultParams() || strategy.Arm(99) != strategy.DefaultParams() {
		t.Error("out-of-range arm index must return baseline params")
	}

	// Catalog returns a copy: mutating it must not affect the source.
	arms[0].RSIEntry = 99
	if strategy.Arm(0).RSIEntry == 99 {
		t.Error("Catalog must return a copy")
	}
}
