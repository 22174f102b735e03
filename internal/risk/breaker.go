package risk

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	DailyLossLimitPercent float64
	ConsecutiveLossLimit  int
	APIFailureLimit       int
	// AllowExitsWhenTripped keeps exit execution enabled after a trip;
	// only new entries are blocked. Entries-and-exits-blocked is the
	// stricter alternative.
	AllowExitsWhenTripped bool
}

// CircuitBreaker is a one-way Armed -> Tripped guard over daily loss,
// consecutive losses, and API failures. Once tripped it stays tripped
// until Reset.
type CircuitBreaker struct {
	logger *zap.Logger
	cfg    BreakerConfig

	mu          sync.Mutex
	apiErrors   int
	consecutive int
	tripped     bool
	tripReason  string
}

// NewCircuitBreaker creates an armed breaker.
func NewCircuitBreaker(logger *zap.Logger, cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		logger: logger.Named("breaker"),
		cfg:    cfg,
	}
}

// CheckDailyPnL trips the breaker when the day's realized loss reaches
// the configured percentage of the day's starting balance. Returns
// false when the limit is hit.
func (cb *CircuitBreaker) CheckDailyPnL(pnl, startBalance decimal.Decimal) bool {
	if startBalance.IsZero() {
		return true
	}

	lossPct := pnl.Div(startBalance).Mul(decimal.NewFromInt(100))
	limit := decimal.NewFromFloat(cb.cfg.DailyLossLimitPercent)

	if pnl.IsNegative() && lossPct.Abs().GreaterThanOrEqual(limit) {
		cb.trip(fmt.Sprintf("daily loss limit: %s%% >= %s%%", lossPct.Abs().StringFixed(2), limit))
		return false
	}
	return true
}

// RecordAPIError counts one external failure and trips once the count
// reaches the configured limit.
func (cb *CircuitBreaker) RecordAPIError() {
	cb.mu.Lock()
	cb.apiErrors++
	count := cb.apiErrors
	cb.mu.Unlock()

	if count >= cb.cfg.APIFailureLimit {
		cb.trip(fmt.Sprintf("api failures: %d >= %d", count, cb.cfg.APIFailureLimit))
	}
}

// RecordTradeResult feeds a closed position's PnL into the
// consecutive-loss counter; a win resets the streak.
func (cb *CircuitBreaker) RecordTradeResult(pnl decimal.Decimal) {
	cb.mu.Lock()
	if pnl.IsNegative() {
		cb.consecutive++
	} else {
		cb.consecutive = 0
	}
	streak := cb.consecutive
	cb.mu.Unlock()

	if cb.cfg.ConsecutiveLossLimit > 0 && streak >= cb.cfg.ConsecutiveLossLimit {
		cb.trip(fmt.Sprintf("consecutive losses: %d >= %d", streak, cb.cfg.ConsecutiveLossLimit))
	}
}

// Tripped reports whether the breaker has tripped.
func (cb *CircuitBreaker) Tripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripped
}

// TripReason returns why the breaker tripped, empty while armed.
func (cb *CircuitBreaker) TripReason() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripReason
}

// AllowExits reports whether exit orders remain permitted while
// tripped.
func (cb *CircuitBreaker) AllowExits() bool {
	return cb.cfg.AllowExitsWhenTripped
}

// APIErrors returns the current failure count.
func (cb *CircuitBreaker) APIErrors() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.apiErrors
}

// Reset re-arms the breaker, clearing the trip state and counters.
// Called by the operator or on day rollover.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	wasTripped := cb.tripped
	cb.tripped = false
	cb.tripReason = ""
	cb.apiErrors = 0
	cb.consecutive = 0
	cb.mu.Unlock()

	if wasTripped {
		cb.logger.Info("Circuit breaker reset")
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.mu.Lock()
	if cb.tripped {
		cb.mu.Unlock()
		return
	}
	cb.tripped = true
	cb.tripReason = reason
	cb.mu.Unlock()

	cb.logger.Error("Circuit breaker tripped", zap.String("reason", reason))
}
