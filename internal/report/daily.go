// Package report summarizes a trading day from the durable store.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/pkg/labels"
	"github.com/swingdesk/swingbot/pkg/types"
)

// Summary is one UTC day of realized results.
type Summary struct {
	Date        string           `json:"date"`
	PnL         decimal.Decimal  `json:"pnl"`
	TradesCount int              `json:"tradesCount"`
	Wins        int              `json:"wins"`
	Losses      int              `json:"losses"`
	WinRate     float64          `json:"winRate"`
	Fees        decimal.Decimal  `json:"fees"`
	Positions   []types.Position `json:"positions"`
	Lines       []string         `json:"lines"`
}

// Daily generates end-of-day summaries.
type Daily struct {
	logger    *zap.Logger
	store     *store.Store
	reportDir string
}

// NewDaily creates a reporter writing JSON files under reportDir.
func NewDaily(logger *zap.Logger, st *store.Store, reportDir string) (*Daily, error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}
	return &Daily{
		logger:    logger.Named("report"),
		store:     st,
		reportDir: reportDir,
	}, nil
}

// Generate builds the summary for a date given as "2006-01-02",
// writes report_<date>.json, and returns it. Positions count toward
// the day their exit lands in, UTC.
func (d *Daily) Generate(date string) (*Summary, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("report date %q: %w", date, err)
	}
	closed, err := d.store.ClosedPositionsBetween(day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", date, err)
	}

	summary := &Summary{
		Date:      date,
		Positions: closed,
	}
	for _, pos := range closed {
		summary.PnL = summary.PnL.Add(pos.PnL)
		summary.Fees = summary.Fees.Add(pos.Commission)
		if pos.PnL.IsPositive() {
			summary.Wins++
		} else {
			summary.Losses++
		}
		summary.Lines = append(summary.Lines, fmt.Sprintf(
			"%s %s %s @ %s -> %s (%s): %s",
			pos.Symbol, labels.Side(pos.Side), pos.Amount.String(),
			pos.EntryPrice.String(), pos.ExitPrice.String(),
			labels.Reason(pos.ExitReason), pos.PnL.String()))
	}
	summary.TradesCount = len(closed)
	if summary.TradesCount > 0 {
		summary.WinRate = float64(summary.Wins) / float64(summary.TradesCount) * 100
	}

	if err := d.write(summary); err != nil {
		return nil, err
	}
	d.logger.Info("daily report",
		zap.String("date", date),
		zap.String("pnl", summary.PnL.String()),
		zap.Int("trades", summary.TradesCount),
		zap.Int("wins", summary.Wins),
		zap.Int("losses", summary.Losses),
		zap.Float64("win_rate", summary.WinRate))
	return summary, nil
}

// write persists the report with a tmp+rename so readers never see a
// half-written file.
func (d *Daily) write(summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(d.reportDir, "report_"+summary.Date+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
