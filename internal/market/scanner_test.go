package market

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeTickerSource struct {
	tickers []Ticker
	err     error
}

func (f *fakeTickerSource) Tickers(_ context.Context) ([]Ticker, error) {
	return f.tickers, f.err
}

func tk(symbol string, quoteVolume int64) Ticker {
	return Ticker{Symbol: symbol, QuoteVolume: decimal.NewFromInt(quoteVolume)}
}

func TestTopPairsRanksByVolume(t *testing.T) {
	src := &fakeTickerSource{tickers: []Ticker{
		tk("ETHUSDT", 500),
		tk("BTCUSDT", 900),
		tk("SOLUSDT", 700),
		tk("DOGEUSDT", 100),
	}}
	s := NewScanner(zap.NewNop(), src, 0)

	got := s.TopPairs(context.Background(), 3)
	want := []string{"BTC/USDT", "SOL/USDT", "ETH/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopPairs = %v, want %v", got, want)
	}
}

func TestTopPairsExcludesStablesAndLeveraged(t *testing.T) {
	src := &fakeTickerSource{tickers: []Ticker{
		tk("USDCUSDT", 9000),
		tk("FDUSDUSDT", 8000),
		tk("BTCUPUSDT", 7000),
		tk("ETHDOWNUSDT", 6000),
		tk("BTCEUR", 5000), // not USDT quoted
		tk("ETHUSDT", 100),
	}}
	s := NewScanner(zap.NewNop(), src, 0)

	got := s.TopPairs(context.Background(), 10)
	want := []string{"ETH/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopPairs = %v, want %v", got, want)
	}
}

func TestTopPairsMinVolumeFloor(t *testing.T) {
	src := &fakeTickerSource{tickers: []Ticker{
		tk("BTCUSDT", 900),
		tk("ETHUSDT", 400),
	}}
	s := NewScanner(zap.NewNop(), src, 500)

	got := s.TopPairs(context.Background(), 10)
	want := []string{"BTC/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopPairs = %v, want %v", got, want)
	}
}

func TestTopPairsFallsBackOnError(t *testing.T) {
	s := NewScanner(zap.NewNop(), &fakeTickerSource{err: errors.New("down")}, 0)
	got := s.TopPairs(context.Background(), 5)
	if !reflect.DeepEqual(got, []string{FallbackPair}) {
		t.Errorf("TopPairs = %v, want fallback", got)
	}
}

func TestTopPairsFallsBackWhenEmpty(t *testing.T) {
	s := NewScanner(zap.NewNop(), &fakeTickerSource{tickers: []Ticker{tk("USDCUSDT", 1)}}, 0)
	got := s.TopPairs(context.Background(), 5)
	if !reflect.DeepEqual(got, []string{FallbackPair}) {
		t.Errorf("TopPairs = %v, want fallback", got)
	}
}
