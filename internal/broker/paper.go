package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/clock"
	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/pkg/types"
)

var one = decimal.NewFromInt(1)

// PaperConfig holds the fill simulator parameters.
type PaperConfig struct {
	InitialBalance decimal.Decimal
	Slippage       decimal.Decimal // fractional, e.g. 0.001
	Fee            decimal.Decimal // fractional, e.g. 0.001
}

// Paper simulates fills against live prices. Buys fill at
// price*(1+slippage), sells at price*(1-slippage), and commission
// of amount*fill*fee is taken from the cash balance on both legs.
type Paper struct {
	logger *zap.Logger
	store  *store.Store
	clk    *clock.Clock
	cfg    PaperConfig

	mu       sync.RWMutex
	balance  decimal.Decimal
	position *types.Position
}

// NewPaper builds a paper broker. Any open position already in the
// store is adopted so a restart resumes mid-trade.
func NewPaper(logger *zap.Logger, st *store.Store, clk *clock.Clock, cfg PaperConfig) (*Paper, error) {
	if cfg.InitialBalance.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("paper broker: initial balance must be positive")
	}
	pos, err := st.GetOpenPosition()
	if err != nil {
		return nil, fmt.Errorf("paper broker: load open position: %w", err)
	}
	p := &Paper{
		logger:   logger.Named("paper"),
		store:    st,
		clk:      clk,
		cfg:      cfg,
		balance:  cfg.InitialBalance,
		position: pos,
	}
	if pos != nil {
		p.logger.Info("resumed open position",
			zap.String("id", pos.ID),
			zap.String("symbol", pos.Symbol),
			zap.String("entry_price", pos.EntryPrice.String()))
	}
	return p, nil
}

// GetBalance returns the quote-currency cash balance.
func (p *Paper) GetBalance(_ context.Context) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance, nil
}

// GetOpenPosition returns the current open position, nil when flat.
func (p *Paper) GetOpenPosition(_ context.Context) (*types.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.position == nil {
		return nil, nil
	}
	cp := *p.position
	return &cp, nil
}

// GetOpenOrders always returns an empty slice; paper orders fill
// instantly and never rest on a book.
func (p *Paper) GetOpenOrders(_ context.Context) ([]types.Order, error) {
	return []types.Order{}, nil
}

// CancelOrder is a no-op for the same reason.
func (p *Paper) CancelOrder(_ context.Context, _ string) error {
	return nil
}

// Sync is a no-op; the paper broker is its own source of truth.
func (p *Paper) Sync(_ context.Context) error {
	return nil
}

// PlaceOrder fills a market order immediately. A buy opens a position
// and a sell closes the open one; both legs persist the order, the
// position state, and an audit trade before returning.
func (p *Paper) PlaceOrder(_ context.Context, signal *types.Signal, size decimal.Decimal) (*types.Order, error) {
	if signal == nil {
		return nil, fmt.Errorf("paper broker: nil signal")
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("paper broker: order size must be positive, got %s", size)
	}

	now, err := p.clk.Now()
	if err != nil {
		return nil, fmt.Errorf("paper broker: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var fill decimal.Decimal
	switch signal.Side {
	case types.SideBuy:
		if p.position != nil {
			return nil, ErrPositionExists
		}
		fill = signal.Price.Mul(one.Add(p.cfg.Slippage))
	case types.SideSell:
		if p.position == nil {
			return nil, ErrNoPosition
		}
		fill = signal.Price.Mul(one.Sub(p.cfg.Slippage))
	default:
		return nil, fmt.Errorf("paper broker: unknown side %q", signal.Side)
	}

	commission := size.Mul(fill).Mul(p.cfg.Fee)

	order := types.Order{
		ID:           uuid.NewString(),
		Symbol:       signal.Symbol,
		Side:         signal.Side,
		Type:         types.OrderTypeMarket,
		Amount:       size,
		Price:        signal.Price,
		Status:       types.OrderStatusFilled,
		FilledAmount: size,
		FilledPrice:  fill,
		Timestamp:    now,
	}

	if signal.Side == types.SideBuy {
		cost := size.Mul(fill).Add(commission)
		if cost.GreaterThan(p.balance) {
			return nil, fmt.Errorf("paper broker: insufficient balance: need %s, have %s",
				cost, p.balance)
		}
		if err := p.store.SaveOrder(order); err != nil {
			return nil, fmt.Errorf("paper broker: save order: %w", err)
		}
		pos := types.Position{
			ID:         uuid.NewString(),
			Symbol:     signal.Symbol,
			Side:       types.SideBuy,
			EntryPrice: fill,
			Amount:     size,
			StopLoss:   signal.StopLoss,
			TakeProfit: signal.TakeProfit,
			EntryTime:  now,
			Status:     types.PositionStatusOpen,
			Commission: commission,
			Arm:        signal.Arm,
			Params:     signal.Params,
		}
		if err := p.store.SavePosition(pos); err != nil {
			return nil, fmt.Errorf("paper broker: save position: %w", err)
		}
		trade := types.Trade{
			ID:         uuid.NewString(),
			PositionID: pos.ID,
			Symbol:     signal.Symbol,
			Side:       types.SideBuy,
			Price:      fill,
			Amount:     size,
			Commission: commission,
			Timestamp:  now,
			Reason:     signal.Reason,
		}
		if err := p.store.AppendTrade(trade); err != nil {
			return nil, fmt.Errorf("paper broker: append trade: %w", err)
		}
		p.balance = p.balance.Sub(cost)
		p.position = &pos
		p.logger.Info("opened position",
			zap.String("symbol", signal.Symbol),
			zap.String("fill_price", fill.String()),
			zap.String("amount", size.String()),
			zap.String("commission", commission.String()),
			zap.String("balance", p.balance.String()))
		return &order, nil
	}

	// Sell leg: close the open position in full.
	pos := *p.position
	if err := p.store.SaveOrder(order); err != nil {
		return nil, fmt.Errorf("paper broker: save order: %w", err)
	}

	proceeds := size.Mul(fill).Sub(commission)
	totalCommission := pos.Commission.Add(commission)
	pnl := fill.Sub(pos.EntryPrice).Mul(pos.Amount).Sub(totalCommission)
	entryCost := pos.EntryPrice.Mul(pos.Amount)
	var pnlPercent decimal.Decimal
	if entryCost.IsPositive() {
		pnlPercent = pnl.Div(entryCost).Mul(decimal.NewFromInt(100))
	}

	pos.Status = types.PositionStatusClosed
	pos.ExitPrice = fill
	pos.ExitTime = &now
	pos.ExitReason = signal.Reason
	pos.PnL = pnl
	pos.PnLPercent = pnlPercent
	pos.Commission = totalCommission
	if err := p.store.SavePosition(pos); err != nil {
		return nil, fmt.Errorf("paper broker: save position: %w", err)
	}

	trade := types.Trade{
		ID:         uuid.NewString(),
		PositionID: pos.ID,
		Symbol:     signal.Symbol,
		Side:       types.SideSell,
		Price:      fill,
		Amount:     size,
		Commission: commission,
		Timestamp:  now,
		Reason:     signal.Reason,
	}
	if err := p.store.AppendTrade(trade); err != nil {
		return nil, fmt.Errorf("paper broker: append trade: %w", err)
	}

	p.balance = p.balance.Add(proceeds)
	p.position = nil
	p.logger.Info("closed position",
		zap.String("symbol", signal.Symbol),
		zap.String("reason", string(signal.Reason)),
		zap.String("fill_price", fill.String()),
		zap.String("pnl", pnl.String()),
		zap.String("pnl_percent", pnlPercent.StringFixed(4)),
		zap.String("balance", p.balance.String()))
	return &order, nil
}

// CheckStopTargets inspects a closed candle against the open
// position's protective levels. The stop is checked against the low
// before the target is checked against the high, so a candle that
// sweeps both resolves as a stop. The returned signal is priced at
// the exact level, not the candle extreme.
func (p *Paper) CheckStopTargets(candle types.Candle) *types.Signal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.position == nil {
		return nil
	}
	pos := p.position
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
