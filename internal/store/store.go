// Package store is the durable source of truth for orders, positions,
// the trade and arm-outcome ledgers, and daily aggregates. State is
// kept in JSON files under a data directory; every write goes through
// an atomic temp-file rename so a crash never leaves a half-written
// file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/pkg/types"
)

const (
	ordersFile      = "orders.json"
	positionsFile   = "positions.json"
	tradesFile      = "trades.json"
	armOutcomesFile = "arm_outcomes.json"
	dailyStatsFile  = "daily_stats.json"
)

// Store persists trading state. Safe for concurrent use, though the
// bot runs a single decision cycle at a time.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string

	orders      map[string]types.Order
	positions   map[string]types.Position
	trades      []types.Trade
	armOutcomes []types.ArmOutcome
	dailyStats  map[string]types.DailyStats
}

// New opens (or initializes) a store rooted at dataDir.
func New(logger *zap.Logger, dataDir string) (*Store, error) {
	s := &Store{
		logger:     logger.Named("store"),
		dataDir:    dataDir,
		orders:     make(map[string]types.Order),
		positions:  make(map[string]types.Position),
		dailyStats: make(map[string]types.DailyStats),
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveOrder inserts or replaces an order.
func (s *Store) SaveOrder(order types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	return s.persistOrders()
}

// GetOpenOrders returns orders that are still working (pending or
// open), sorted by timestamp.
func (s *Store) GetOpenOrders() ([]types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []types.Order
	for _, o := range s.orders {
		if o.Status == types.OrderStatusPending || o.Status == types.OrderStatusOpen {
			open = append(open, o)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Timestamp.Before(open[j].Timestamp) })
	return open, nil
}

// SavePosition inserts or replaces a position.
func (s *Store) SavePosition(pos types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[pos.ID] = pos
	return s.persistPositions()
}

// GetPosition returns a position by id.
func (s *Store) GetPosition(id string) (types.Position, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[id]
	return pos, ok, nil
}

// GetOpenPosition returns the single open position, if any. More than
// one open position indicates corruption and is reported as an error.
func (s *Store) GetOpenPosition() (*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open *types.Position
	for id := range s.positions {
		pos := s.positions[id]
		if pos.Status != types.PositionStatusOpen {
			continue
		}
		if open != nil {
			return nil, fmt.Errorf("store corrupt: multiple open positions (%s, %s)", open.ID, pos.ID)
		}
		open = &pos
	}
	return open, nil
}

// ClosedPositionsBetween returns closed positions whose exit time
// falls in [start, end), oldest first.
func (s *Store) ClosedPositionsBetween(start, end time.Time) ([]types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var closed []types.Position
	for _, pos := range s.positions {
		if pos.Status != types.PositionStatusClosed || pos.ExitTime == nil {
			continue
		}
		if !pos.ExitTime.Before(start) && pos.ExitTime.Before(end) {
			closed = append(closed, pos)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ExitTime.Before(*closed[j].ExitTime) })
	return closed, nil
}

// AppendTrade adds one fill to the append-only trade ledger.
func (s *Store) AppendTrade(trade types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, trade)
	return s.persistTrades()
}

// TradesBetween returns ledger entries in [start, end), oldest first.
func (s *Store) TradesBetween(start, end time.Time) ([]types.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Trade
	for _, t := range s.trades {
		if !t.Timestamp.Before(start) && t.Timestamp.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// AppendArmOutcome adds one row to the bandit performance ledger.
func (s *Store) AppendArmOutcome(outcome types.ArmOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armOutcomes = append(s.armOutcomes, outcome)
	return s.persistArmOutcomes()
}

// ArmOutcomes returns the full performance ledger, oldest first.
func (s *Store) ArmOutcomes() ([]types.ArmOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ArmOutcome, len(s.armOutcomes))
	copy(out, s.armOutcomes)
	return out, nil
}

// GetDailyStats returns the aggregate row for a date (YYYY-MM-DD),
// zero-valued when the day has no activity yet.
func (s *Store) GetDailyStats(date string) (types.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stats, ok := s.dailyStats[date]; ok {
		return stats, nil
	}
	return types.DailyStats{Date: date}, nil
}

// UpdateDailyStats applies a mutation to a date's aggregate row and
// persists the result.
func (s *Store) UpdateDailyStats(date string, mutate func(*types.DailyStats)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.dailyStats[date]
	if !ok {
		stats = types.DailyStats{Date: date}
	}
	mutate(&stats)
	stats.Date = date
	s.dailyStats[date] = stats
	return s.persistDailyStats()
}

func (s *Store) loadAll() error {
	if err := s.loadFile(ordersFile, &s.orders); err != nil {
		return err
	}
	if err := s.loadFile(positionsFile, &s.positions); err != nil {
		return err
	}
	if err := s.loadFile(tradesFile, &s.trades); err != nil {
		return err
	}
	if err := s.loadFile(armOutcomesFile, &s.armOutcomes); err != nil {
		return err
	}
	if err := s.loadFile(dailyStatsFile, &s.dailyStats); err != nil {
		return err
	}

	s.logger.Debug("Store loaded",
		zap.Int("orders", len(s.orders)),
		zap.Int("positions", len(s.positions)),
		zap.Int("trades", len(s.trades)),
		zap.Int("armOutcomes", len(s.armOutcomes)))
	return nil
}

func (s *Store) loadFile(name string, target any) error {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) persistOrders() error      { return s.writeFile(ordersFile, s.orders) }
func (s *Store) persistPositions() error   { return s.writeFile(positionsFile, s.positions) }
func (s *Store) persistTrades() error      { return s.writeFile(tradesFile, s.trades) }
func (s *Store) persistArmOutcomes() error { return s.writeFile(armOutcomesFile, s.armOutcomes) }
func (s *Store) persistDailyStats() error  { return s.writeFile(dailyStatsFile, s.dailyStats) }

// writeFile writes via temp file + rename so readers never observe a
// partial write and a crash cannot truncate existing state.
func (s *Store) writeFile(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dataDir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
