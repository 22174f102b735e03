package regime_test

import (
	"testing"

	"github.com/swingdesk/swingbot/internal/indicators"
	"github.com/swingdesk/swingbot/internal/regime"
	"github.com/swingdesk/swingbot/pkg/types"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		row  indicators.Row
		want types.MarketRegime
	}{
		{"high volatility wins", indicators.Row{ATRPercent: 6.0, ADX: 40}, types.RegimeHighVol},
		{"volatility at cap is not high vol", indicators.Row{ATRPercent: 5.0, ADX: 30}, types.RegimeTrending},
		{"trending", indicators.Row{ATRPercent: 1.0, ADX: 26}, types.RegimeTrending},
		{"ranging", indicators.Row{ATRPercent: 1.0, ADX: 15}, types.RegimeRanging},
		{"uncertain band", indicators.Row{ATRPercent: 1.0, ADX: 22}, types.RegimeUncertain},
		{"adx exactly trending threshold", indicators.Row{ATRPercent: 1.0, ADX: 25}, types.RegimeUncertain},
		{"adx exactly ranging threshold", indicators.Row{ATRPercent: 1.0, ADX: 20}, types.RegimeUncertain},
		{"zero row defaults to ranging", indicators.Row{}, types.RegimeRanging},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := regime.Classify(tc.row, regime.DefaultVolatilityCap)
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
