// Package orchestrator runs the decision cycle: one pass from market
// data through strategy, risk, and execution, repeated on a timer.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/api"
	"github.com/swingdesk/swingbot/internal/bandit"
	"github.com/swingdesk/swingbot/internal/broker"
	"github.com/swingdesk/swingbot/internal/clock"
	"github.com/swingdesk/swingbot/internal/config"
	"github.com/swingdesk/swingbot/internal/indicators"
	"github.com/swingdesk/swingbot/internal/market"
	"github.com/swingdesk/swingbot/internal/metrics"
	"github.com/swingdesk/swingbot/internal/regime"
	"github.com/swingdesk/swingbot/internal/report"
	"github.com/swingdesk/swingbot/internal/risk"
	"github.com/swingdesk/swingbot/internal/sentiment"
	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/internal/strategy"
	"github.com/swingdesk/swingbot/pkg/labels"
	"github.com/swingdesk/swingbot/pkg/types"
)

// MarketData supplies candles and trading limits.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)
	Limits(ctx context.Context, symbol string) (types.MarketLimits, error)
}

// PairScanner picks tradable symbols when none is pinned.
type PairScanner interface {
	TopPairs(ctx context.Context, limit int) []string
}

// SentimentGate blocks entries in hostile market mood.
type SentimentGate interface {
	IsMarketSafe(ctx context.Context, threshold int) bool
}

// EventProbability reads event-market probabilities for macro sizing.
type EventProbability interface {
	Probability(ctx context.Context, marketID string) (float64, bool)
}

// StopChecker detects protective-level breaches on a closed candle.
type StopChecker interface {
	CheckStopTargets(candle types.Candle) *types.Signal
}

// Broadcaster pushes events to WebSocket clients.
type Broadcaster interface {
	Broadcast(msgType api.MessageType, payload any)
}

// Deps carries everything the orchestrator composes. All fields are
// required except Scanner, Sentiment, Events, Hub, and Reporter.
type Deps struct {
	Clock    *clock.Clock
	Broker   broker.Broker
	Stops    StopChecker
	Market   MarketData
	Scanner  PairScanner
	Store    *store.Store
	Risk     *risk.Engine
	Breaker  *risk.CircuitBreaker
	Selector *bandit.Selector
	Metrics  *metrics.Metrics

	Sentiment SentimentGate
	Events    EventProbability
	Hub       Broadcaster
	Reporter  *report.Daily
}

// Orchestrator owns cycle state: the active symbol, the day boundary,
// and the last published status snapshot.
type Orchestrator struct {
	logger *zap.Logger
	cfg    *config.Config
	deps   Deps

	mu              sync.RWMutex
	status          types.CycleStatus
	currentDay      string
	dayStartBalance decimal.Decimal
	cycles          int64
}

// New wires an orchestrator. Dependencies are injected; the
// orchestrator creates nothing itself.
func New(logger *zap.Logger, cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		logger: logger.Named("orchestrator"),
		cfg:    cfg,
		deps:   deps,
	}
}

// SetHub attaches the WebSocket hub after construction; the status
// server needs the orchestrator first, so the hub arrives late.
func (o *Orchestrator) SetHub(hub Broadcaster) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deps.Hub = hub
}

// Status returns the latest cycle snapshot.
func (o *Orchestrator) Status() types.CycleStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Run loops RunCycle on the configured interval until ctx is
// canceled. The first cycle runs immediately. A failed cycle is
// logged and counted, never fatal.
func (o *Orchestrator) Run(ctx context.Context) {
	interval := o.cfg.CycleInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	o.logger.Info("starting cycle loop", zap.Duration("interval", interval))

	o.cycle(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("cycle loop stopped")
			return
		case <-ticker.C:
			o.cycle(ctx)
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) {
	if err := o.RunCycle(ctx); err != nil {
		o.deps.Metrics.CycleErrorsTotal.Inc()
		o.logger.Error("cycle failed", zap.Error(err))
		o.mu.Lock()
		o.status.LastError = err.Error()
		o.mu.Unlock()
	}
}

// RunCycle executes one decision pass.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.deps.Metrics.CyclesTotal.Inc()
	o.mu.Lock()
	o.cycles++
	o.mu.Unlock()

	now, err := o.deps.Clock.Now()
	if err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	balance, err := o.deps.Broker.GetBalance(ctx)
	if err != nil {
		o.recordAPIError("balance", err)
		return fmt.Errorf("refresh balance: %w", err)
	}
	o.deps.Metrics.Balance.Set(balanceGauge(balance))

	day := now.UTC().Format("2006-01-02")
	o.rolloverDay(day, balance)

	// Position state is read fresh from the store every cycle so a
	// restart or external edit is picked up immediately.
	pos, err := o.deps.Store.GetOpenPosition()
	if err != nil {
		return fmt.Errorf("read open position: %w", err)
	}
	o.deps.Metrics.OpenPosition.Set(boolGauge(pos != nil))

	stats, err := o.deps.Store.GetDailyStats(day)
	if err != nil {
		return fmt.Errorf("read daily stats: %w", err)
	}
	o.deps.Metrics.DailyPnL.Set(balanceGauge(stats.PnL))
	o.mu.RLock()
	dayStart := o.dayStartBalance
	o.mu.RUnlock()
	o.deps.Breaker.CheckDailyPnL(stats.PnL, dayStart)

	symbol := o.pickSymbol(ctx, pos)

	arm, params := o.armForCycle(pos)

	candles, err := o.deps.Market.FetchCandles(ctx, symbol, o.cfg.Timeframe, o.cfg.Lookback)
	if err != nil {
		o.recordAPIError("candles", err)
		return fmt.Errorf("fetch candles: %w", err)
	}
	rows := indicators.Compute(candles, params)
	if len(rows) < 2 {
		o.logger.Warn("insufficient candle history, skipping cycle",
			zap.String("symbol", symbol),
			zap.Int("candles", len(candles)))
		o.publishStatus(now, symbol, "", arm, balance, stats.PnL, pos)
		return nil
	}
	curr, prev := rows[len(rows)-1], rows[len(rows)-2]
	rgm := regime.Classify(curr, regime.DefaultVolatilityCap)

	// Protective levels are checked before the strategy gets a say.
	if pos != nil {
		if exit := o.deps.Stops.CheckStopTargets(candles[len(candles)-1]); exit != nil {
			err := o.closePosition(ctx, exit, pos, day, now)
			pos, _ = o.deps.Store.GetOpenPosition()
			o.publishStatus(now, symbol, rgm, arm, balance, stats.PnL, pos)
			return err
		}
	}

	evaluator := strategy.NewEvaluator(symbol)
	signal := evaluator.Evaluate(curr, prev, rgm, params, arm, pos != nil)
	if signal == nil {
		o.logCycle(symbol, rgm, arm, balance, stats.PnL, pos, "hold")
		o.publishStatus(now, symbol, rgm, arm, balance, stats.PnL, pos)
		return nil
	}

	switch signal.Side {
	case types.SideSell:
		err = o.closePosition(ctx, signal, pos, day, now)
	case types.SideBuy:
		err = o.openPosition(ctx, signal, balance, symbol)
	}
	pos, _ = o.deps.Store.GetOpenPosition()
	o.publishStatus(now, symbol, rgm, arm, balance, stats.PnL, pos)
	return err
}

// rolloverDay resets per-day state when the UTC date changes and
// emits the previous day's report.
func (o *Orchestrator) rolloverDay(day string, balance decimal.Decimal) {
	o.mu.Lock()
	prev := o.currentDay
	if prev == day {
		o.mu.Unlock()
		return
	}
	o.currentDay = day
	o.dayStartBalance = balance
	o.mu.Unlock()

	if prev == "" {
		return
	}
	o.logger.Info("day rollover", zap.String("from", prev), zap.String("to", day))
	o.deps.Breaker.Reset()
	o.deps.Metrics.BreakerTripped.Set(0)
	if o.deps.Reporter != nil {
		if _, err := o.deps.Reporter.Generate(prev); err != nil {
			o.logger.Error("daily report failed", zap.String("date", prev), zap.Error(err))
		}
	}
}

// pickSymbol keeps the open position's symbol, then the pinned
// config symbol, then the top scanned pair.
func (o *Orchestrator) pickSymbol(ctx context.Context, pos *types.Position) string {
	if pos != nil {
		return pos.Symbol
	}
	if o.cfg.Symbol != "" {
		return o.cfg.Symbol
	}
	if o.deps.Scanner != nil {
		if pairs := o.deps.Scanner.TopPairs(ctx, 1); len(pairs) > 0 {
			return pairs[0]
		}
	}
	return market.FallbackPair
}

// armForCycle pins the open position's arm while holding; otherwise
// the bandit picks one for this cycle.
func (o *Orchestrator) armForCycle(pos *types.Position) (int, types.StrategyParams) {
	if pos != nil {
		if pos.Params != nil {
			return pos.Arm, *pos.Params
		}
		return pos.Arm, strategy.Arm(pos.Arm)
	}
	arm, err := o.deps.Selector.SelectArm()
	if err != nil {
		o.logger.Warn("arm selection failed, using baseline", zap.Error(err))
		return 0, strategy.DefaultParams()
	}
	o.deps.Metrics.RecordArmSelection(arm)
	return arm, strategy.Arm(arm)
}

// openPosition runs the entry gates and places the buy.
func (o *Orchestrator) openPosition(ctx context.Context, signal *types.Signal, balance decimal.Decimal, symbol string) error {
	if o.deps.Breaker.Tripped() {
		o.deps.Metrics.BreakerTripped.Set(1)
		o.logger.Warn("entry blocked by circuit breaker",
			zap.String("reason", o.deps.Breaker.TripReason()))
		return nil
	}
	if !o.deps.Risk.CanOpen(0) {
		o.logger.Warn("entry blocked by position limit")
		return nil
	}
	if o.cfg.Sentiment.Enabled && o.deps.Sentiment != nil {
		if !o.deps.Sentiment.IsMarketSafe(ctx, o.cfg.Sentiment.Threshold) {
			o.logger.Warn("entry blocked by sentiment gate")
			return nil
		}
	}

	size := o.deps.Risk.SizePosition(signal, balance)
	if size.IsZero() {
		o.logger.Warn("entry skipped, zero position size")
		return nil
	}
	if scale := o.macroScale(ctx); scale < 1.0 {
		size = size.Mul(decimal.NewFromFloat(scale))
		o.logger.Info("position scaled by macro risk",
			zap.Float64("scale", scale),
			zap.String("size", size.String()))
	}

	limits, err := o.deps.Market.Limits(ctx, symbol)
	if err != nil {
		// Fail open: a limits outage must not block trading.
		o.logger.Warn("limits unavailable", zap.Error(err))
		limits = types.MarketLimits{}
	}
	if ok, reason := o.deps.Risk.CheckMinNotional(size, signal.Price, limits); !ok {
		o.logger.Warn("entry below exchange minimum", zap.String("reason", reason))
		return nil
	}

	order, err := o.deps.Broker.PlaceOrder(ctx, signal, size)
	if err != nil {
		o.recordAPIError("buy order", err)
		return fmt.Errorf("place buy order: %w", err)
	}
	o.deps.Metrics.OrdersTotal.WithLabelValues(string(types.SideBuy)).Inc()
	o.logger.Info("position opened",
		zap.String("symbol", symbol),
		zap.Int("arm", signal.Arm),
		zap.String("fill", order.FilledPrice.String()),
		zap.String("size", order.FilledAmount.String()))
	o.broadcast(api.MsgTypeOrderUpdate, order)
	return nil
}

// closePosition sells the open position and settles its bookkeeping:
// bandit outcome, daily stats, and breaker loss streak.
func (o *Orchestrator) closePosition(ctx context.Context, signal *types.Signal, pos *types.Position, day string, now time.Time) error {
	if pos == nil {
		return nil
	}
	if o.deps.Breaker.Tripped() && !o.deps.Breaker.AllowExits() {
		o.logger.Warn("exit blocked by circuit breaker",
			zap.String("reason", o.deps.Breaker.TripReason()))
		return nil
	}

	order, err := o.deps.Broker.PlaceOrder(ctx, signal, pos.Amount)
	if err != nil {
		o.recordAPIError("sell order", err)
		return fmt.Errorf("place sell order: %w", err)
	}
	o.deps.Metrics.OrdersTotal.WithLabelValues(string(types.SideSell)).Inc()

	closed, ok, err := o.deps.Store.GetPosition(pos.ID)
	if err != nil || !ok {
		return fmt.Errorf("read closed position %s: ok=%v err=%w", pos.ID, ok, err)
	}

	outcome := "loss"
	if closed.PnL.IsPositive() {
		outcome = "win"
	}
	r := rMultiple(closed)
	pnlPct, _ := closed.PnLPercent.Float64()
	if err := o.deps.Selector.RecordOutcome(closed.Arm, r, pnlPct, outcome, now); err != nil {
		o.logger.Error("record arm outcome failed", zap.Error(err))
	}

	if err := o.deps.Store.UpdateDailyStats(day, func(stats *types.DailyStats) {
		stats.PnL = stats.PnL.Add(closed.PnL)
		stats.TradesCount++
		stats.Fees = stats.Fees.Add(closed.Commission)
		if closed.PnL.IsPositive() {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}); err != nil {
		o.logger.Error("update daily stats failed", zap.Error(err))
	}

	o.deps.Breaker.RecordTradeResult(closed.PnL)
	if o.deps.Breaker.Tripped() {
		o.deps.Metrics.BreakerTripped.Set(1)
	}

	o.logger.Info("position closed",
		zap.String("symbol", closed.Symbol),
		zap.String("reason", string(signal.Reason)),
		zap.Int("arm", closed.Arm),
		zap.String("pnl", closed.PnL.String()),
		zap.Float64("r_multiple", r),
		zap.String("fill", order.FilledPrice.String()))
	o.broadcast(api.MsgTypePositionUpdate, closed)
	return nil
}

// macroScale folds configured event markets into a sizing multiplier.
// Unfetchable markets are skipped rather than assumed risky.
func (o *Orchestrator) macroScale(ctx context.Context) float64 {
	if o.deps.Events == nil || len(o.cfg.Macro.MarketIDs) == 0 {
		return 1.0
	}
	probs := make([]float64, 0, len(o.cfg.Macro.MarketIDs))
	for _, id := range o.cfg.Macro.MarketIDs {
		if p, ok := o.deps.Events.Probability(ctx, id); ok {
			probs = append(probs, p)
		}
	}
	return sentiment.MacroRiskScale(probs)
}

// rMultiple expresses a closed trade's pnl in units of its initial
// risk. Positions without a stop report zero.
func rMultiple(pos types.Position) float64 {
	risk := pos.EntryPrice.Sub(pos.StopLoss).Mul(pos.Amount)
	if !risk.IsPositive() {
		return 0
	}
	r, _ := pos.PnL.Div(risk).Float64()
	return r
}

func (o *Orchestrator) recordAPIError(op string, err error) {
	o.deps.Metrics.APIErrorsTotal.Inc()
	o.deps.Breaker.RecordAPIError()
	if o.deps.Breaker.Tripped() {
		o.deps.Metrics.BreakerTripped.Set(1)
	}
	o.logger.Warn("api error", zap.String("op", op), zap.Error(err))
}

func (o *Orchestrator) publishStatus(now time.Time, symbol string, rgm types.MarketRegime, arm int, balance, dailyPnL decimal.Decimal, pos *types.Position) {
	o.mu.Lock()
	o.status = types.CycleStatus{
		Timestamp:      now,
		Symbol:         symbol,
		Regime:         rgm,
		Arm:            arm,
		Balance:        balance,
		DailyPnL:       dailyPnL,
		OpenPosition:   pos,
		BreakerTripped: o.deps.Breaker.Tripped(),
		BreakerReason:  o.deps.Breaker.TripReason(),
		CyclesRun:      o.cycles,
	}
	status := o.status
	o.mu.Unlock()
	o.broadcast(api.MsgTypeCycleStatus, status)
}

func (o *Orchestrator) logCycle(symbol string, rgm types.MarketRegime, arm int, balance, dailyPnL decimal.Decimal, pos *types.Position, action string) {
	fields := []zap.Field{
		zap.String("symbol", symbol),
		zap.String("regime", labels.Regime(rgm)),
		zap.Int("arm", arm),
		zap.String("balance", balance.StringFixed(2)),
		zap.String("daily_pnl", dailyPnL.StringFixed(2)),
		zap.String("action", action),
	}
	if pos != nil {
		fields = append(fields, zap.String("position_entry", pos.EntryPrice.String()))
	}
	o.logger.Info("cycle", fields...)
}

func (o *Orchestrator) broadcast(msgType api.MessageType, payload any) {
	o.mu.RLock()
	hub := o.deps.Hub
	o.mu.RUnlock()
	if hub != nil {
		hub.Broadcast(msgType, payload)
	}
}

func balanceGauge(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
