// Package sentiment gates entries on external market mood feeds: the
// alternative.me Fear & Greed index and event-market probabilities.
// Both feeds fail open so an outage never strands the bot.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultFearGreedURL = "https://api.alternative.me/fng/"
	defaultEventURL     = "https://gamma-api.polymarket.com/markets"
	eventRetries        = 2
)

// FearGreedClient reads the crypto Fear & Greed index.
type FearGreedClient struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewFearGreedClient creates a client; empty baseURL selects the
// public endpoint.
func NewFearGreedClient(logger *zap.Logger, baseURL string) *FearGreedClient {
	if baseURL == "" {
		baseURL = defaultFearGreedURL
	}
	return &FearGreedClient{
		logger:     logger.Named("feargreed"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Index returns the current index value (0-100) and classification.
func (c *FearGreedClient) Index(ctx context.Context) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fear & greed fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("fear & greed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, "", fmt.Errorf("fear & greed decode: %w", err)
	}
	if len(payload.Data) == 0 {
		return 0, "", fmt.Errorf("fear & greed returned no data")
	}
	value, err := strconv.Atoi(payload.Data[0].Value)
	if err != nil {
		return 0, "", fmt.Errorf("fear & greed value %q: %w", payload.Data[0].Value, err)
	}
	return value, payload.Data[0].Classification, nil
}

// IsMarketSafe reports whether the index is at or above threshold.
// Any fetch failure returns true so trading continues on feed outages.
func (c *FearGreedClient) IsMarketSafe(ctx context.Context, threshold int) bool {
	value, classification, err := c.Index(ctx)
	if err != nil {
		c.logger.Warn("sentiment unavailable, allowing trades", zap.Error(err))
		return true
	}
	c.logger.Info("market sentiment",
		zap.Int("value", value),
		zap.String("classification", classification))
	if value < threshold {
		c.logger.Warn("sentiment below threshold, blocking entries",
			zap.Int("value", value),
			zap.Int("threshold", threshold))
		return false
	}
	return true
}

// EventProbabilityClient reads outcome probabilities from an event
// market's gamma-style API.
type EventProbabilityClient struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewEventProbabilityClient creates a client; empty baseURL selects
// the public endpoint.
func NewEventProbabilityClient(logger *zap.Logger, baseURL string) *EventProbabilityClient {
	if baseURL == "" {
		baseURL = defaultEventURL
	}
	return &EventProbabilityClient{
		logger:     logger.Named("events"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Probability fetches the current probability (0-1) for a market.
// The second return is false when no usable price could be read;
// callers skip the market rather than treating it as zero risk.
func (c *EventProbabilityClient) Probability(ctx context.Context, marketID string) (float64, bool) {
	url := c.baseURL + "/" + marketID
	for attempt := 0; attempt <= eventRetries; attempt++ {
		p, err := c.fetchPrice(ctx, url)
		if err == nil {
			return p, true
		}
		if attempt < eventRetries {
			c.logger.Warn("event market fetch failed, retrying",
				zap.String("market", marketID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		c.logger.Warn("event market unavailable",
			zap.String("market", marketID),
			zap.Error(err))
	}
	return 0, false
}

func (c *EventProbabilityClient) fetchPrice(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload struct {
		Price   string `json:"price"`
		BestBid string `json:"bestBid"`
		BestAsk string `json:"bestAsk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if payload.Price != "" {
		return strconv.ParseFloat(payload.Price, 64)
	}
	bid, errB := strconv.ParseFloat(payload.BestBid, 64)
	ask, errA := strconv.ParseFloat(payload.BestAsk, 64)
	if errB == nil && errA == nil && bid > 0 && ask > 0 {
		return (bid + ask) / 2, nil
	}
	return 0, fmt.Errorf("no usable price in response")
}

// MacroRiskScale folds event probabilities into one sizing multiplier.
// Low average probability means elevated macro risk and a smaller
// position. An empty slice is neutral.
func MacroRiskScale(probabilities []float64) float64 {
	if len(probabilities) == 0 {
		return 1.0
	}
	var sum float64
	for _, p := range probabilities {
		sum += p
	}
	avg := sum / float64(len(probabilities))
	switch {
	case avg < 0.35:
		return 0.5
	case avg < 0.50:
		return 0.8
	default:
		return 1.0
	}
}
