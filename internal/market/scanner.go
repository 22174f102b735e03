package market

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FallbackPair is returned when scanning cannot produce a candidate.
const FallbackPair = "BTC/USDT"

// stablecoins are quote-like assets excluded from scanning; trading
// a stable against USDT has no swing to capture.
var stablecoins = map[string]bool{
	"USDC": true, "BUSD": true, "TUSD": true, "DAI": true,
	"FDUSD": true, "USDP": true, "EUR": true, "PAX": true,
}

// leveragedSuffixes mark Binance leveraged tokens.
var leveragedSuffixes = []string{"UP", "DOWN", "BULL", "BEAR"}

// TickerSource yields 24h tickers for the whole venue.
type TickerSource interface {
	Tickers(ctx context.Context) ([]Ticker, error)
}

// Scanner ranks USDT spot pairs by quote volume.
type Scanner struct {
	logger         *zap.Logger
	source         TickerSource
	minQuoteVolume decimal.Decimal
}

// NewScanner creates a pair scanner. Pairs under minQuoteVolume (24h,
// in quote currency) are dropped; zero disables the floor.
func NewScanner(logger *zap.Logger, source TickerSource, minQuoteVolume float64) *Scanner {
	return &Scanner{
		logger:         logger.Named("scanner"),
		source:         source,
		minQuoteVolume: decimal.NewFromFloat(minQuoteVolume),
	}
}

// TopPairs returns up to limit USDT pairs in "BASE/USDT" form, ranked
// by 24h quote volume. Stablecoin and leveraged-token pairs are
// excluded. On any failure the fallback pair is returned so a scan
// outage never leaves the bot without a market.
func (s *Scanner) TopPairs(ctx context.Context, limit int) []string {
	tickers, err := s.source.Tickers(ctx)
	if err != nil {
		s.logger.Warn("ticker scan failed, using fallback", zap.Error(err))
		return []string{FallbackPair}
	}

	candidates := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		base, ok := usdtBase(t.Symbol)
		if !ok {
			continue
		}
		if stablecoins[base] || isLeveraged(base) {
			continue
		}
		if t.QuoteVolume.LessThan(s.minQuoteVolume) {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		s.logger.Warn("no scan candidates, using fallback")
		return []string{FallbackPair}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].QuoteVolume.GreaterThan(candidates[j].QuoteVolume)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	pairs := make([]string, 0, len(candidates))
	for _, t := range candidates {
		base, _ := usdtBase(t.Symbol)
		pairs = append(pairs, base+"/USDT")
	}
	return pairs
}

// usdtBase extracts the base asset of a USDT-quoted symbol.
func usdtBase(symbol string) (string, bool) {
	base, found := strings.CutSuffix(symbol, "USDT")
	if !found || base == "" {
		return "", false
	}
	return base, true
}

func isLeveraged(base string) bool {
	for _, suffix := range leveragedSuffixes {
		if strings.HasSuffix(base, suffix) && len(base) > len(suffix) {
			return true
		}
	}
	return false
}
