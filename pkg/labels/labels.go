// Package labels maps domain enumerations to display text. The core
// never formats user-facing strings itself; anything shown on a status
// line or report goes through these lookup tables.
package labels

import "github.com/swingdesk/swingbot/pkg/types"

var sideLabels = map[types.Side]string{
	types.SideBuy:  "BUY",
	types.SideSell: "SELL",
}

var reasonLabels = map[types.SignalReason]string{
	types.ReasonEntry:      "Signal Entry",
	types.ReasonRSIExit:    "RSI Exit",
	types.ReasonTrendFlip:  "Trend Flip",
	types.ReasonStopLoss:   "Stop Loss",
	types.ReasonTakeProfit: "Take Profit",
	types.ReasonKillSwitch: "Kill Switch",
	types.ReasonManual:     "Manual",
}

var regimeLabels = map[types.MarketRegime]string{
	types.RegimeTrending:  "Trending",
	types.RegimeRanging:   "Ranging",
	types.RegimeHighVol:   "High Volatility",
	types.RegimeUncertain: "Uncertain",
}

// Side returns the display label for an order side.
func Side(s types.Side) string {
	if l, ok := sideLabels[s]; ok {
		return l
	}
	return string(s)
}

// Reason returns the display label for a signal reason.
func Reason(r types.SignalReason) string {
	if l, ok := reasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// Regime returns the display label for a market regime.
func Regime(r types.MarketRegime) string {
	if l, ok := regimeLabels[r]; ok {
		return l
	}
	return string(r)
}
