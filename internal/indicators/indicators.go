// Package indicators computes the indicator snapshot rows the strategy
// consumes, using go-talib over a candle window.
package indicators

import (
	"github.com/markcheno/go-talib"

	"github.com/swingdesk/swingbot/pkg/types"
)

// adxPeriod is fixed; only RSI/EMA/ATR periods vary per parameter set.
const adxPeriod = 14

// Row is one indicator snapshot, aligned one-to-one with its candle.
type Row struct {
	Close      float64
	RSI        float64
	EMAFast    float64
	EMASlow    float64
	ATR        float64
	ATRPercent float64
	ADX        float64
}

// MinCandles returns the smallest candle count Compute needs for the
// given parameter set to produce stable values on the last rows.
func MinCandles(p types.StrategyParams) int {
	min := p.EMASlow
	if p.RSIPeriod > min {
		min = p.RSIPeriod
	}
	if p.ATRPeriod > min {
		min = p.ATRPeriod
	}
	if 2*adxPeriod > min {
		min = 2 * adxPeriod
	}
	// One extra bar so the caller always has a previous row.
	return min + 2
}

// Compute derives indicator rows for the candle window using the
// periods from the given parameter set. Returns nil when the window is
// too short to warm up every indicator.
func Compute(candles []types.Candle, p types.StrategyParams) []Row {
	if len(candles) < MinCandles(p) {
		return nil
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
	}

	rsi := talib.Rsi(closes, p.RSIPeriod)
	emaFast := talib.Ema(closes, p.EMAFast)
	emaSlow := talib.Ema(closes, p.EMASlow)
	atr := talib.Atr(highs, lows, closes, p.ATRPeriod)
	adx := talib.Adx(highs, lows, closes, adxPeriod)

	rows := make([]Row, len(candles))
	for i := range candles {
		r := Row{
			Close:   closes[i],
			RSI:     rsi[i],
			EMAFast: emaFast[i],
			EMASlow: emaSlow[i],
			ATR:     atr[i],
			ADX:     adx[i],
		}
		if closes[i] != 0 {
			r.ATRPercent = atr[i] / closes[i] * 100
		}
		rows[i] = r
	}
	return rows
}
