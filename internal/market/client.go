// Package market fetches public market data from a Binance-compatible
// REST API: candles, tickers, and per-symbol trading limits.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/pkg/types"
)

const (
	defaultBaseURL    = "https://api.binance.com"
	maxRetries        = 3
	defaultRetryDelay = 2 * time.Second
)

// Ticker is a 24h rolling ticker for one symbol.
type Ticker struct {
	Symbol      string          `json:"symbol"`
	LastPrice   decimal.Decimal `json:"lastPrice"`
	QuoteVolume decimal.Decimal `json:"quoteVolume"`
}

// Client is a public (unsigned) market data client.
type Client struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
	limiter    *rateLimiter
	retryDelay time.Duration
}

// NewClient creates a market data client. An empty baseURL selects
// the production endpoint.
func NewClient(logger *zap.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		logger:     logger.Named("market"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    newRateLimiter(1200, time.Minute), // Binance weight limit
		retryDelay: defaultRetryDelay,
	}
}

// FetchCandles returns up to limit closed candles for symbol at the
// given interval, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	params := url.Values{}
	params.Set("symbol", formatSymbol(symbol))
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var raw [][]any
	if err := c.getJSON(ctx, "/api/v3/klines", params, &raw); err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, row := range raw {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// Tickers returns the 24h tickers for all symbols on the venue.
func (c *Client) Tickers(ctx context.Context) ([]Ticker, error) {
	var tickers []Ticker
	if err := c.getJSON(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}
	return tickers, nil
}

// Limits returns the venue's minimum order constraints for a symbol.
// Symbols without published filters return empty limits.
func (c *Client) Limits(ctx context.Context, symbol string) (types.MarketLimits, error) {
	params := url.Values{}
	params.Set("symbol", formatSymbol(symbol))

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				MinNotional string `json:"minNotional"`
				MinQty      string `json:"minQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := c.getJSON(ctx, "/api/v3/exchangeInfo", params, &info); err != nil {
		return types.MarketLimits{}, fmt.Errorf("fetch limits %s: %w", symbol, err)
	}

	var limits types.MarketLimits
	for _, s := range info.Symbols {
		if s.Symbol != formatSymbol(symbol) {
			continue
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "MIN_NOTIONAL", "NOTIONAL":
				if v, err := decimal.NewFromString(f.MinNotional); err == nil {
					limits.MinCost = v
				}
			case "LOT_SIZE":
				if v, err := decimal.NewFromString(f.MinQty); err == nil {
					limits.MinAmount = v
				}
			}
		}
	}
	return limits, nil
}

// getJSON performs a GET with bounded retries and decodes the body.
// Only transport errors and 5xx/429 responses are retried.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, target any) error {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		c.limiter.acquire()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("request failed",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return json.Unmarshal(body, target)
		}
		lastErr = fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, truncate(body, 200))
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return lastErr
		}
		c.logger.Warn("retryable response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

// parseKline converts one klines row. The venue encodes timestamps
// as numbers and prices as strings.
func parseKline(row []any) (types.Candle, error) {
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}
	ts, ok := row[0].(float64)
	if !ok {
		return types.Candle{}, fmt.Errorf("kline open time is %T, want number", row[0])
	}
	fields := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return types.Candle{}, fmt.Errorf("kline field %d is %T, want string", i, row[i])
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return types.Candle{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		fields[i-1] = v
	}
	return types.Candle{
		Timestamp: time.UnixMilli(int64(ts)).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// formatSymbol converts "BTC/USDT" to the venue's "BTCUSDT" form.
func formatSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// rateLimiter is a token bucket refilled at a fixed rate.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

func newRateLimiter(maxTokens int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: window / time.Duration(maxTokens),
		lastRefill: time.Now(),
	}
}

func (rl *rateLimiter) acquire() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refills := int(now.Sub(rl.lastRefill) / rl.refillRate)
	if refills > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+refills)
		rl.lastRefill = now
	}
	for rl.tokens <= 0 {
		rl.mu.Unlock()
		time.Sleep(rl.refillRate)
		rl.mu.Lock()
		rl.tokens++
	}
	rl.tokens--
}
