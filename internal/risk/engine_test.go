package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/risk"
	"github.com/swingdesk/swingbot/pkg/types"
)

func buySignal(price, stop int64) *types.Signal {
	return &types.Signal{
		Symbol:   "BTC/USDT",
		Side:     types.SideBuy,
		Reason:   types.ReasonEntry,
		Price:    decimal.NewFromInt(price),
		StopLoss: decimal.NewFromInt(stop),
	}
}

func TestCanOpen(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 1.0, 1)

	if !e.CanOpen(0) {
		t.Error("should allow opening with zero positions")
	}
	if e.CanOpen(1) {
		t.Error("should block opening at the cap")
	}
}

func TestSizePositionFixedFractional(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 1.0, 1)
	capital := decimal.NewFromInt(1000)

	// Risk 1% of 1000 = 10, stop distance 5 -> amount 2.
	size := e.SizePosition(buySignal(100, 95), capital)
	if !size.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected size 2, got %s", size)
	}
}

func TestSizePositionZeroSentinels(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 1.0, 1)
	capital := decimal.NewFromInt(1000)

	sig := buySignal(100, 95)
	sig.StopLoss = decimal.Zero
	if size := e.SizePosition(sig, capital); !size.IsZero() {
		t.Errorf("missing stop must size to zero, got %s", size)
	}

	// Stop equal to price: division-by-zero guard.
	if size := e.SizePosition(buySignal(100, 100), capital); !size.IsZero() {
		t.Errorf("zero stop distance must size to zero, got %s", size)
	}

	if size := e.SizePosition(nil, capital); !size.IsZero() {
		t.Errorf("nil signal must size to zero, got %s", size)
	}
}

func TestSizePositionCappedByCapital(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 50.0, 1)
	capital := decimal.NewFromInt(1000)

	// Uncapped: 500 / 1 = 500 units at price 100 -> 50000 notional.
	size := e.SizePosition(buySignal(100, 99), capital)

	notional := size.Mul(decimal.NewFromInt(100))
	if notional.GreaterThan(capital) {
		t.Errorf("notional %s exceeds capital %s", notional, capital)
	}
	if !size.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected capital-capped size 10, got %s", size)
	}
}

func TestSizePositionNotionalNeverExceedsCapital(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 2.0, 1)

	cases := []struct {
		capital     int64
		price, stop int64
	}{
		{1000, 100, 95},
		{1000, 100, 99},
		{50, 20000, 19000},
		{10, 3, 2},
	}

	for _, tc := range cases {
		capital := decimal.NewFromInt(tc.capital)
		size := e.SizePosition(buySignal(tc.price, tc.stop), capital)
		notional := size.Mul(decimal.NewFromInt(tc.price))
		if notional.GreaterThan(capital) {
			t.Errorf("capital=%d price=%d stop=%d: notional %s exceeds capital",
				tc.capital, tc.price, tc.stop, notional)
		}
	}
}

func TestCheckMinNotional(t *testing.T) {
	e := risk.NewEngine(zap.NewNop(), 1.0, 1)

	limits := types.MarketLimits{
		MinCost:   decimal.NewFromInt(10),
		MinAmount: decimal.NewFromFloat(0.001),
	}

	ok, _ := e.CheckMinNotional(decimal.NewFromInt(1), decimal.NewFromInt(100), limits)
	if !ok {
		t.Error("order above both minimums should pass")
	}

	ok, msg := e.CheckMinNotional(decimal.NewFromFloat(0.05), decimal.NewFromInt(100), limits)
	if ok {
		t.Error("cost 5 below min cost 10 should fail")
	}
	if msg == "" {
		t.Error("rejection should carry a message")
	}

	ok, _ = e.CheckMinNotional(decimal.NewFromFloat(0.0005), decimal.NewFromInt(100000), limits)
	if ok {
		t.Error("amount below min amount should fail")
	}

	// Fail-open on missing metadata.
	ok, _ = e.CheckMinNotional(decimal.NewFromFloat(0.0000001), decimal.NewFromInt(1), types.MarketLimits{})
	if !ok {
		t.Error("missing limits must pass")
	}
}
