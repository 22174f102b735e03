package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/pkg/types"
)

// ExchangeOrder is the normalized shape of an exchange order response.
type ExchangeOrder struct {
	ID           string
	Status       string // "open", "closed", "canceled"
	FilledAmount decimal.Decimal
	AveragePrice decimal.Decimal
	Fee          decimal.Decimal
	Timestamp    time.Time
}

// Exchange is the minimal surface the live broker needs from an
// exchange client. Implementations wrap a venue's REST API.
type Exchange interface {
	CreateMarketOrder(ctx context.Context, symbol string, side types.Side, amount decimal.Decimal) (*ExchangeOrder, error)
	FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]ExchangeOrder, error)
	CancelOrder(ctx context.Context, orderID, symbol string) error
}

// Live routes orders to a real exchange while keeping the same
// position lifecycle as the paper broker. Position state in the
// store remains the source of truth; Sync detects drift from the
// exchange and surfaces it instead of repairing it.
type Live struct {
	logger *zap.Logger
	store  *store.Store
	exch   Exchange
	symbol string
	base   string
	quote  string

	mu       sync.RWMutex
	position *types.Position
}

// syncTolerance is the fractional drift between the stored position
// amount and the exchange base-asset balance that Sync tolerates.
var syncTolerance = decimal.NewFromFloat(0.01)

// NewLive builds a live broker for one symbol, adopting any open
// position already in the store.
func NewLive(logger *zap.Logger, st *store.Store, exch Exchange, symbol string) (*Live, error) {
	base, quote := splitSymbol(symbol)
	if quote == "" {
		return nil, fmt.Errorf("live broker: symbol %q is not BASE/QUOTE", symbol)
	}
	pos, err := st.GetOpenPosition()
	if err != nil {
		return nil, fmt.Errorf("live broker: load open position: %w", err)
	}
	l := &Live{
		logger:   logger.Named("live"),
		store:    st,
		exch:     exch,
		symbol:   symbol,
		base:     base,
		quote:    quote,
		position: pos,
	}
	if pos != nil {
		l.logger.Info("resumed open position",
			zap.String("id", pos.ID),
			zap.String("entry_price", pos.EntryPrice.String()))
	}
	return l, nil
}

// GetBalance returns the free quote-asset balance on the exchange.
func (l *Live) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	balances, err := l.exch.FetchBalance(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("live broker: fetch balance: %w", err)
	}
	return balances[l.quote], nil
}

// GetOpenPosition returns the current open position, nil when flat.
func (l *Live) GetOpenPosition(_ context.Context) (*types.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.position == nil {
		return nil, nil
	}
	cp := *l.position
	return &cp, nil
}

// GetOpenOrders lists resting orders on the exchange for the symbol.
func (l *Live) GetOpenOrders(ctx context.Context) ([]types.Order, error) {
	raw, err := l.exch.FetchOpenOrders(ctx, l.symbol)
	if err != nil {
		return nil, fmt.Errorf("live broker: fetch open orders: %w", err)
	}
	orders := make([]types.Order, 0, len(raw))
	for _, eo := range raw {
		orders = append(orders, types.Order{
			ID:           eo.ID,
			Symbol:       l.symbol,
			Status:       types.OrderStatusOpen,
			FilledAmount: eo.FilledAmount,
			FilledPrice:  eo.AveragePrice,
			Timestamp:    eo.Timestamp,
		})
	}
	return orders, nil
}

// CancelOrder cancels a resting exchange order.
func (l *Live) CancelOrder(ctx context.Context, orderID string) error {
	if err := l.exch.CancelOrder(ctx, orderID, l.symbol); err != nil {
		return fmt.Errorf("live broker: cancel %s: %w", orderID, err)
	}
	return nil
}

// PlaceOrder sends a market order and mirrors the fill into the
// position lifecycle. A partial or unfilled response is an error;
// market orders on the supported venues fill or reject atomically.
func (l *Live) PlaceOrder(ctx context.Context, signal *types.Signal, size decimal.Decimal) (*types.Order, error) {
	if signal == nil {
		return nil, fmt.Errorf("live broker: nil signal")
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("live broker: order size must be positive, got %s", size)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch signal.Side {
	case types.SideBuy:
		if l.position != nil {
			return nil, ErrPositionExists
		}
	case types.SideSell:
		if l.position == nil {
			return nil, ErrNoPosition
		}
	default:
		return nil, fmt.Errorf("live broker: unknown side %q", signal.Side)
	}

	eo, err := l.exch.CreateMarketOrder(ctx, l.symbol, signal.Side, size)
	if err != nil {
		return nil, fmt.Errorf("live broker: create order: %w", err)
	}
	if eo.Status != "closed" || eo.FilledAmount.IsZero() || eo.AveragePrice.IsZero() {
		return nil, fmt.Errorf("live broker: order %s not filled (status=%s filled=%s)",
			eo.ID, eo.Status, eo.FilledAmount)
	}

	order := types.Order{
		ID:           eo.ID,
		Symbol:       l.symbol,
		Side:         signal.Side,
		Type:         types.OrderTypeMarket,
		Amount:       size,
		Price:        signal.Price,
		Status:       types.OrderStatusFilled,
		FilledAmount: eo.FilledAmount,
		FilledPrice:  eo.AveragePrice,
		Timestamp:    eo.Timestamp,
	}
	if err := l.store.SaveOrder(order); err != nil {
		return nil, fmt.Errorf("live broker: save order: %w", err)
	}

	if signal.Side == types.SideBuy {
		pos := types.Position{
			ID:         uuid.NewString(),
			Symbol:     l.symbol,
			Side:       types.SideBuy,
			EntryPrice: eo.AveragePrice,
			Amount:     eo.FilledAmount,
			StopLoss:   signal.StopLoss,
			TakeProfit: signal.TakeProfit,
			EntryTime:  eo.Timestamp,
			Status:     types.PositionStatusOpen,
			Commission: eo.Fee,
			Arm:        signal.Arm,
			Params:     signal.Params,
		}
		if err := l.store.SavePosition(pos); err != nil {
			return nil, fmt.Errorf("live broker: save position: %w", err)
		}
		if err := l.appendTrade(pos.ID, signal, eo); err != nil {
			return nil, err
		}
		l.position = &pos
		l.logger.Info("opened position",
			zap.String("fill_price", eo.AveragePrice.String()),
			zap.String("amount", eo.FilledAmount.String()))
		return &order, nil
	}

	pos := *l.position
	totalCommission := pos.Commission.Add(eo.Fee)
	pnl := eo.AveragePrice.Sub(pos.EntryPrice).Mul(pos.Amount).Sub(totalCommission)
	entryCost := pos.EntryPrice.Mul(pos.Amount)
	var pnlPercent decimal.Decimal
	if entryCost.IsPositive() {
		pnlPercent = pnl.Div(entryCost).Mul(decimal.NewFromInt(100))
	}

	exitTime := eo.Timestamp
	pos.Status = types.PositionStatusClosed
	pos.ExitPrice = eo.AveragePrice
	pos.ExitTime = &exitTime
	pos.ExitReason = signal.Reason
	pos.PnL = pnl
	pos.PnLPercent = pnlPercent
	pos.Commission = totalCommission
	if err := l.store.SavePosition(pos); err != nil {
		return nil, fmt.Errorf("live broker: save position: %w", err)
	}
	if err := l.appendTrade(pos.ID, signal, eo); err != nil {
		return nil, err
	}
	l.position = nil
	l.logger.Info("closed position",
		zap.String("reason", string(signal.Reason)),
		zap.String("fill_price", eo.AveragePrice.String()),
		zap.String("pnl", pnl.String()))
	return &order, nil
}

func (l *Live) appendTrade(positionID string, signal *types.Signal, eo *ExchangeOrder) error {
	trade := types.Trade{
		ID:         uuid.NewString(),
		PositionID: positionID,
		Symbol:     l.symbol,
		Side:       signal.Side,
		Price:      eo.AveragePrice,
		Amount:     eo.FilledAmount,
		Commission: eo.Fee,
		Timestamp:  eo.Timestamp,
		Reason:     signal.Reason,
	}
	if err := l.store.AppendTrade(trade); err != nil {
		return fmt.Errorf("live broker: append trade: %w", err)
	}
	return nil
}

// CheckStopTargets inspects a closed candle against the open
// position's protective levels, stop before target, pricing the exit
// at the exact level.
func (l *Live) CheckStopTargets(candle types.Candle) *types.Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.position == nil {
		return nil
	}
	pos := l.position
	if !pos.StopLoss.IsZero() && candle.Low.LessThanOrEqual(pos.StopLoss) {
		return &types.Signal{
			Symbol: pos.Symbol,
			Side:   types.SideSell,
			Reason: types.ReasonStopLoss,
			Price:  pos.StopLoss,
			Arm:    pos.Arm,
			Params: pos.Params,
		}
	}
	if !pos.TakeProfit.IsZero() && candle.High.GreaterThanOrEqual(pos.TakeProfit) {
		return &types.Signal{
			Symbol: pos.Symbol,
			Side:   types.SideSell,
			Reason: types.ReasonTakeProfit,
			Price:  pos.TakeProfit,
			Arm:    pos.Arm,
			Params: pos.Params,
		}
	}
	return nil
}

// Sync compares the stored position against the exchange base-asset
// balance. Drift beyond the tolerance is reported as an error so the
// operator can reconcile by hand; local state is never mutated to
// match the exchange.
func (l *Live) Sync(ctx context.Context) error {
	balances, err := l.exch.FetchBalance(ctx)
	if err != nil {
		return fmt.Errorf("live broker: sync: fetch balance: %w", err)
	}
	held := balances[l.base]

	l.mu.RLock()
	pos := l.position
	l.mu.RUnlock()

	var expected decimal.Decimal
	if pos != nil {
		expected = pos.Amount
	}
	diff := held.Sub(expected).Abs()
	limit := expected.Mul(syncTolerance)
	if expected.IsZero() {
		limit = syncTolerance
	}
	if diff.GreaterThan(limit) {
		l.logger.Warn("position drift detected",
			zap.String("expected", expected.String()),
			zap.String("exchange", held.String()))
		return fmt.Errorf("live broker: position drift: store holds %s %s, exchange holds %s",
			expected, l.base, held)
	}
	return nil
}
