package market

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/broker"
	"github.com/swingdesk/swingbot/pkg/types"
)

// BinanceExchange is the signed (account-scoped) Binance client used
// by the live broker.
type BinanceExchange struct {
	logger     *zap.Logger
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
}

// NewBinanceExchange creates a signed client. An empty baseURL
// selects the production endpoint.
func NewBinanceExchange(logger *zap.Logger, baseURL, apiKey, apiSecret string) *BinanceExchange {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &BinanceExchange{
		logger:     logger.Named("binance"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type binanceOrderResponse struct {
	OrderID     int64  `json:"orderId"`
	Status      string `json:"status"`
	ExecutedQty string `json:"executedQty"`
	CumQuoteQty string `json:"cummulativeQuoteQty"`
	TransactTs  int64  `json:"transactTime"`
	Fills       []struct {
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Commission string `json:"commission"`
	} `json:"fills"`
}

// CreateMarketOrder submits a market order and normalizes the fill.
func (b *BinanceExchange) CreateMarketOrder(ctx context.Context, symbol string, side types.Side, amount decimal.Decimal) (*broker.ExchangeOrder, error) {
	params := url.Values{}
	params.Set("symbol", formatSymbol(symbol))
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", amount.String())

	body, err := b.signedRequest(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	var resp binanceOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("create order: decode: %w", err)
	}

	filled, err := decimal.NewFromString(resp.ExecutedQty)
	if err != nil {
		return nil, fmt.Errorf("create order: executedQty %q: %w", resp.ExecutedQty, err)
	}
	var avgPrice, fee decimal.Decimal
	if quote, err := decimal.NewFromString(resp.CumQuoteQty); err == nil && filled.IsPositive() {
		avgPrice = quote.Div(filled)
	}
	for _, fill := range resp.Fills {
		if c, err := decimal.NewFromString(fill.Commission); err == nil {
			fee = fee.Add(c)
		}
	}

	status := "open"
	if resp.Status == "FILLED" {
		status = "closed"
	} else if resp.Status == "CANCELED" || resp.Status == "REJECTED" || resp.Status == "EXPIRED" {
		status = "canceled"
	}
	return &broker.ExchangeOrder{
		ID:           strconv.FormatInt(resp.OrderID, 10),
		Status:       status,
		FilledAmount: filled,
		AveragePrice: avgPrice,
		Fee:          fee,
		Timestamp:    time.UnixMilli(resp.TransactTs).UTC(),
	}, nil
}

// FetchBalance returns free balances by asset.
func (b *BinanceExchange) FetchBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	body, err := b.signedRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	var resp struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fetch balance: decode: %w", err)
	}
	balances := make(map[string]decimal.Decimal, len(resp.Balances))
	for _, bal := range resp.Balances {
		if v, err := decimal.NewFromString(bal.Free); err == nil && !v.IsZero() {
			balances[bal.Asset] = v
		}
	}
	return balances, nil
}

// FetchOpenOrders lists resting orders for a symbol.
func (b *BinanceExchange) FetchOpenOrders(ctx context.Context, symbol string) ([]broker.ExchangeOrder, error) {
	params := url.Values{}
	params.Set("symbol", formatSymbol(symbol))
	body, err := b.signedRequest(ctx, http.MethodGet, "/api/v3/openOrders", params)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	var resp []struct {
		OrderID     int64  `json:"orderId"`
		ExecutedQty string `json:"executedQty"`
		Price       string `json:"price"`
		Time        int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fetch open orders: decode: %w", err)
	}
	orders := make([]broker.ExchangeOrder, 0, len(resp))
	for _, o := range resp {
		filled, _ := decimal.NewFromString(o.ExecutedQty)
		price, _ := decimal.NewFromString(o.Price)
		orders = append(orders, broker.ExchangeOrder{
			ID:           strconv.FormatInt(o.OrderID, 10),
			Status:       "open",
			FilledAmount: filled,
			AveragePrice: price,
			Timestamp:    time.UnixMilli(o.Time).UTC(),
		})
	}
	return orders, nil
}

// CancelOrder cancels one resting order.
func (b *BinanceExchange) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", formatSymbol(symbol))
	params.Set("orderId", orderID)
	if _, err := b.signedRequest(ctx, http.MethodDelete, "/api/v3/order", params); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// signedRequest appends a timestamp, signs the query with the API
// secret, and returns the response body.
func (b *BinanceExchange) signedRequest(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + b.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+endpoint+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func (b *BinanceExchange) sign(data string) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
