// Package regime classifies market conditions from indicator snapshots.
package regime

import (
	"github.com/swingdesk/swingbot/internal/indicators"
	"github.com/swingdesk/swingbot/pkg/types"
)

// DefaultVolatilityCap is the ATR-percent ceiling above which the
// market is treated as too volatile to trade.
const DefaultVolatilityCap = 5.0

// ADX thresholds from Wilder's convention: above 25 a trend is in
// force, below 20 the market is range-bound.
const (
	adxTrending = 25.0
	adxRanging  = 20.0
)

// Classify maps an indicator row to a market regime. The volatility
// check runs first and overrides any trend state.
func Classify(row indicators.Row, volatilityCap float64) types.MarketRegime {
	if row.ATRPercent > volatilityCap {
		return types.RegimeHighVol
	}
	if row.ADX > adxTrending {
		return types.RegimeTrending
	}
	if row.ADX < adxRanging {
		return types.RegimeRanging
	}
	return types.RegimeUncertain
}
