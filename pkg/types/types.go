// Package types provides shared type definitions for the swing bot.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType represents the type of order.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeTakeProfit OrderType = "take_profit"
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// SignalReason explains why a signal was produced.
type SignalReason string

const (
	ReasonEntry      SignalReason = "entry"
	ReasonRSIExit    SignalReason = "rsi_exit"
	ReasonTrendFlip  SignalReason = "trend_flip"
	ReasonStopLoss   SignalReason = "stop_loss"
	ReasonTakeProfit SignalReason = "take_profit"
	ReasonKillSwitch SignalReason = "kill_switch"
	ReasonManual     SignalReason = "manual"
)

// MarketRegime classifies the current market condition.
type MarketRegime string

const (
	RegimeTrending  MarketRegime = "trending"
	RegimeRanging   MarketRegime = "ranging"
	RegimeHighVol   MarketRegime = "high_volatility"
	RegimeUncertain MarketRegime = "uncertain"
)

// Candle represents a single OHLCV bar.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// StrategyParams is one parameter set (a bandit arm). Immutable after
// construction; referenced by value from signals and positions.
type StrategyParams struct {
	RSIPeriod int     `json:"rsiPeriod"`
	RSIEntry  float64 `json:"rsiEntry"`
	RSIExit   float64 `json:"rsiExit"`
	EMAFast   int     `json:"emaFast"`
	EMASlow   int     `json:"emaSlow"`
	ATRPeriod int     `json:"atrPeriod"`
	SLMult    float64 `json:"slMult"`
	TPMult    float64 `json:"tpMult"`
}

// Signal is a transient trade instruction produced by the strategy
// and consumed once by the orchestrator. Never persisted on its own.
type Signal struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Reason     SignalReason    `json:"reason"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"` // zero when unset
	Strength   float64         `json:"strength"`
	Arm        int             `json:"arm"`
	Params     *StrategyParams `json:"params,omitempty"`
}

// Order records one execution attempt. Immutable once filled.
type Order struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	Status        OrderStatus     `json:"status"`
	FilledAmount  decimal.Decimal `json:"filledAmount"`
	FilledPrice   decimal.Decimal `json:"filledPrice"` // average
	Timestamp     time.Time       `json:"timestamp"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
}

// Position is the single open holding and its close-out record.
// At most one position is open system-wide at any time.
type Position struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	Amount     decimal.Decimal `json:"amount"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
	EntryTime  time.Time       `json:"entryTime"`
	Status     PositionStatus  `json:"status"`
	ExitPrice  decimal.Decimal `json:"exitPrice"`
	ExitTime   *time.Time      `json:"exitTime,omitempty"`
	ExitReason SignalReason    `json:"exitReason,omitempty"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal `json:"pnlPercent"`
	Commission decimal.Decimal `json:"commission"`
	Arm        int             `json:"arm"`
	Params     *StrategyParams `json:"params,omitempty"`
}

// Trade is an append-only ledger entry, one per order fill.
// Used for reporting and auditing, never to reconstruct position state.
type Trade struct {
	ID         string          `json:"id"`
	PositionID string          `json:"positionId"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Commission decimal.Decimal `json:"commission"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     SignalReason    `json:"reason"`
}

// ArmOutcome is one row of the bandit performance ledger, appended
// exactly once per closed position.
type ArmOutcome struct {
	Arm        int       `json:"arm"`
	Timestamp  time.Time `json:"timestamp"`
	RMultiple  float64   `json:"rMultiple"`
	PnLPercent float64   `json:"pnlPercent"`
	Outcome    string    `json:"outcome"` // "win" or "loss"
}

// MarketLimits holds exchange minimums for a symbol. Zero values mean
// the exchange did not report a limit.
type MarketLimits struct {
	MinCost   decimal.Decimal `json:"minCost"`
	MinAmount decimal.Decimal `json:"minAmount"`
}

// Empty reports whether no limits are available.
func (m MarketLimits) Empty() bool {
	return m.MinCost.IsZero() && m.MinAmount.IsZero()
}

// DailyStats aggregates one trading day.
type DailyStats struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	PnL         decimal.Decimal `json:"pnl"`
	TradesCount int             `json:"tradesCount"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	Fees        decimal.Decimal `json:"fees"`
	PausedUntil string          `json:"pausedUntil,omitempty"`
}

// CycleStatus is a snapshot of the most recent decision cycle,
// served over the status API and broadcast to WebSocket clients.
type CycleStatus struct {
	Timestamp      time.Time       `json:"timestamp"`
	Symbol         string          `json:"symbol"`
	Regime         MarketRegime    `json:"regime,omitempty"`
	Arm            int             `json:"arm"`
	Balance        decimal.Decimal `json:"balance"`
	DailyPnL       decimal.Decimal `json:"dailyPnl"`
	OpenPosition   *Position       `json:"openPosition,omitempty"`
	BreakerTripped bool            `json:"breakerTripped"`
	BreakerReason  string          `json:"breakerReason,omitempty"`
	CyclesRun      int64           `json:"cyclesRun"`
	LastError      string          `json:"lastError,omitempty"`
}
