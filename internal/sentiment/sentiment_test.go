package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestIsMarketSafeThreshold(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		threshold int
		want      bool
	}{
		{"above threshold", "45", 20, true},
		{"at threshold", "20", 20, true},
		{"below threshold", "12", 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"data":[{"value":"` + tt.value + `","value_classification":"Fear"}]}`))
			}))
			defer srv.Close()

			c := NewFearGreedClient(zap.NewNop(), srv.URL)
			if got := c.IsMarketSafe(context.Background(), tt.threshold); got != tt.want {
				t.Errorf("IsMarketSafe(value=%s, threshold=%d) = %v, want %v",
					tt.value, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestIsMarketSafeFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewFearGreedClient(zap.NewNop(), srv.URL)
	if !c.IsMarketSafe(context.Background(), 20) {
		t.Error("feed outage must fail open")
	}

	// Unreachable endpoint behaves the same.
	srv.Close()
	if !c.IsMarketSafe(context.Background(), 20) {
		t.Error("unreachable feed must fail open")
	}
}

func TestProbabilityDirectPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mkt-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"price":"0.62"}`))
	}))
	defer srv.Close()

	c := NewEventProbabilityClient(zap.NewNop(), srv.URL)
	p, ok := c.Probability(context.Background(), "mkt-1")
	if !ok || p != 0.62 {
		t.Errorf("Probability = (%v, %v), want (0.62, true)", p, ok)
	}
}

func TestProbabilityMidPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"bestBid":"0.40","bestAsk":"0.50"}`))
	}))
	defer srv.Close()

	c := NewEventProbabilityClient(zap.NewNop(), srv.URL)
	p, ok := c.Probability(context.Background(), "mkt-2")
	if !ok || p != 0.45 {
		t.Errorf("Probability = (%v, %v), want (0.45, true)", p, ok)
	}
}

func TestProbabilityRetriesThenGivesUp(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewEventProbabilityClient(zap.NewNop(), srv.URL)
	if _, ok := c.Probability(context.Background(), "mkt-3"); ok {
		t.Error("expected failure")
	}
	if attempts != eventRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, eventRetries+1)
	}
}

func TestMacroRiskScale(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  float64
	}{
		{"empty is neutral", nil, 1.0},
		{"low probability halves risk", []float64{0.2, 0.3}, 0.5},
		{"mid probability trims risk", []float64{0.4, 0.45}, 0.8},
		{"high probability is normal", []float64{0.6, 0.7}, 1.0},
		{"boundary 0.35", []float64{0.35}, 0.8},
		{"boundary 0.50", []float64{0.50}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MacroRiskScale(tt.probs); got != tt.want {
				t.Errorf("MacroRiskScale(%v) = %v, want %v", tt.probs, got, tt.want)
			}
		})
	}
}
