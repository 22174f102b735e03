// Package strategy derives trade signals from indicator snapshots.
// The evaluator is pure: identical inputs always produce identical
// output and nothing is mutated.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/swingdesk/swingbot/internal/indicators"
	"github.com/swingdesk/swingbot/pkg/types"
)

// entryVolatilityCap vetoes entries when ATR exceeds this percentage
// of price, independent of the regime classifier's own threshold.
const entryVolatilityCap = 5.0

// Evaluator implements the RSI + EMA swing strategy. Long only.
type Evaluator struct {
	symbol string
}

// NewEvaluator creates an evaluator for the given trading pair.
func NewEvaluator(symbol string) *Evaluator {
	return &Evaluator{symbol: symbol}
}

// Evaluate maps the latest two indicator rows, the market regime, and
// a parameter set to an optional signal. hasOpen selects between entry
// and exit logic. The prev row is carried for symmetry with the
// indicator window; current rules only consult curr.
func (e *Evaluator) Evaluate(curr, prev indicators.Row, rgm types.MarketRegime, params types.StrategyParams, arm int, hasOpen bool) *types.Signal {
	// Hard safety veto: no decisions at all in a high-volatility regime.
	if rgm == types.RegimeHighVol {
		return nil
	}

	if !hasOpen {
		return e.entry(curr, params, arm)
	}
	return e.exit(curr, params, arm)
}

func (e *Evaluator) entry(curr indicators.Row, params types.StrategyParams, arm int) *types.Signal {
	trendOK := curr.EMAFast > curr.EMASlow
	oversold := curr.RSI < params.RSIEntry
	volOK := curr.ATRPercent < entryVolatilityCap

	if !trendOK || !oversold || !volOK {
		return nil
	}

	closePx := decimal.NewFromFloat(curr.Close)
	atr := decimal.NewFromFloat(curr.ATR)
	p := params

	return &types.Signal{
		Symbol:     e.symbol,
		Side:       types.SideBuy,
		Reason:     types.ReasonEntry,
		Price:      closePx,
		StopLoss:   closePx.Sub(atr.Mul(decimal.NewFromFloat(params.SLMult))),
		TakeProfit: closePx.Add(atr.Mul(decimal.NewFromFloat(params.TPMult))),
		Strength:   1.0,
		Arm:        arm,
		Params:     &p,
	}
}

func (e *Evaluator) exit(curr indicators.Row, params types.StrategyParams, arm int) *types.Signal {
	// Checked in order; first match wins.
	if curr.RSI > params.RSIExit {
		return e.exitSignal(curr, types.ReasonRSIExit, arm)
	}
	if curr.EMAFast < curr.EMASlow {
		return e.exitSignal(curr, types.ReasonTrendFlip, arm)
	}
	return nil
}

func (e *Evaluator) exitSignal(curr indicators.Row, reason types.SignalReason, arm int) *types.Signal {
	return &types.Signal{
		Symbol:   e.symbol,
		Side:     types.SideSell,
		Reason:   reason,
		Price:    decimal.NewFromFloat(curr.Close),
		Strength: 1.0,
		Arm:      arm,
	}
}
