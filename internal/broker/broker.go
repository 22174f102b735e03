// Package broker executes signals and owns the position lifecycle.
// Two implementations share one contract: a deterministic paper fill
// simulator and a live exchange pass-through.
package broker

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/swingdesk/swingbot/pkg/types"
)

var (
	// ErrPositionExists rejects a buy while a position is already open.
	ErrPositionExists = errors.New("broker: a position is already open")
	// ErrNoPosition rejects a sell with nothing to close.
	ErrNoPosition = errors.New("broker: no open position to close")
)

// Broker is the execution capability the orchestrator depends on.
type Broker interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, signal *types.Signal, size decimal.Decimal) (*types.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOpenOrders(ctx context.Context) ([]types.Order, error)
	GetOpenPosition(ctx context.Context) (*types.Position, error)
	Sync(ctx context.Context) error
}

// splitSymbol breaks "BTC/USDT" into base and quote assets.
func splitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}
