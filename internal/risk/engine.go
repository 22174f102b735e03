// Package risk provides position sizing limits and the circuit breaker.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/pkg/types"
)

// Engine sizes positions with a fixed-fractional rule and enforces
// exchange minimums and the position-count cap.
type Engine struct {
	logger           *zap.Logger
	riskPerTradePct  decimal.Decimal
	maxOpenPositions int
}

// NewEngine creates a risk engine. riskPerTradePct is the percentage
// of capital risked per trade (e.g. 1.0 for 1%).
func NewEngine(logger *zap.Logger, riskPerTradePct float64, maxOpenPositions int) *Engine {
	return &Engine{
		logger:           logger.Named("risk"),
		riskPerTradePct:  decimal.NewFromFloat(riskPerTradePct),
		maxOpenPositions: maxOpenPositions,
	}
}

// CanOpen reports whether a new position may be opened given the
// current open count.
func (e *Engine) CanOpen(currentOpenCount int) bool {
	return currentOpenCount < e.maxOpenPositions
}

// SizePosition computes the amount to buy so that a stop-out loses a
// fixed fraction of capital. Returns zero when the signal has no stop
// or the stop sits on the entry price; callers must treat zero as
// "do not trade". The result is capped so notional never exceeds
// capital (no leverage).
func (e *Engine) SizePosition(signal *types.Signal, capital decimal.Decimal) decimal.Decimal {
	if signal == nil || signal.StopLoss.IsZero() {
		return decimal.Zero
	}

	slDistance := signal.Price.Sub(signal.StopLoss).Abs()
	if slDistance.IsZero() {
		return decimal.Zero
	}

	riskAmount := capital.Mul(e.riskPerTradePct).Div(decimal.NewFromInt(100))
	size := riskAmount.Div(slDistance)

	if size.Mul(signal.Price).GreaterThan(capital) {
		size = capital.Div(signal.Price)
		e.logger.Debug("Position size capped to buying power",
			zap.String("size", size.String()),
			zap.String("capital", capital.String()))
	}

	return size
}

// CheckMinNotional verifies a candidate order against exchange
// minimums. Passes when no limits are available; a data gap must not
// block trading.
func (e *Engine) CheckMinNotional(size, price decimal.Decimal, limits types.MarketLimits) (bool, string) {
	if limits.Empty() {
		return true, ""
	}

	cost := size.Mul(price)
	if !limits.MinCost.IsZero() && cost.LessThan(limits.MinCost) {
		return false, fmt.Sprintf("cost %s below exchange minimum %s", cost, limits.MinCost)
	}
	if !limits.MinAmount.IsZero() && size.LessThan(limits.MinAmount) {
		return false, fmt.Sprintf("amount %s below exchange minimum %s", size, limits.MinAmount)
	}
	return true, ""
}
