package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFetchCandlesParsesKlines(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			[1709290800000,"100.0","105.0","99.0","104.0","1234.5",1709291099999,"0",0,"0","0","0"],
			[1709291100000,"104.0","106.0","103.0","105.5","987.1",1709291399999,"0",0,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL)
	candles, err := c.FetchCandles(context.Background(), "BTC/USDT", "5m", 2)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if gotPath != "/api/v3/klines" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "interval=5m&limit=2&symbol=BTCUSDT" {
		t.Errorf("query = %s", gotQuery)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}
	if !candles[0].Timestamp.Before(candles[1].Timestamp) {
		t.Error("candles not oldest first")
	}
	if got, want := candles[0].Close.String(), "104"; got != want {
		t.Errorf("close = %s, want %s", got, want)
	}
	if got, want := candles[1].Volume.String(), "987.1"; got != want {
		t.Errorf("volume = %s, want %s", got, want)
	}
}

func TestFetchCandlesRejectsMalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[[1709290800000,"100.0","bad","99.0","104.0","1.0"]]`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL)
	if _, err := c.FetchCandles(context.Background(), "BTC/USDT", "5m", 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL)
	c.retryDelay = time.Millisecond
	if _, err := c.Tickers(context.Background()); err != nil {
		t.Fatalf("Tickers after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL)
	if _, err := c.Tickers(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestLimitsParsesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","filters":[
			{"filterType":"LOT_SIZE","minQty":"0.0001"},
			{"filterType":"NOTIONAL","minNotional":"5.0"}
		]}]}`))
	}))
	defer srv.Close()

	c := NewClient(zap.NewNop(), srv.URL)
	limits, err := c.Limits(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("Limits: %v", err)
	}
	if got, want := limits.MinCost.String(), "5"; got != want {
		t.Errorf("MinCost = %s, want %s", got, want)
	}
	if got, want := limits.MinAmount.String(), "0.0001"; got != want {
		t.Errorf("MinAmount = %s, want %s", got, want)
	}
	if limits.Empty() {
		t.Error("limits reported empty")
	}
}
