package clock_test

import (
	"testing"
	"time"

	"github.com/swingdesk/swingbot/internal/clock"
)

func TestLiveClockReturnsCurrentTime(t *testing.T) {
	c := clock.New(clock.ModeLive)

	before := time.Now().UTC()
	now, err := c.Now()
	if err != nil {
		t.Fatalf("Now returned error: %v", err)
	}
	after := time.Now().UTC()

	if now.Before(before) || now.After(after) {
		t.Errorf("live time %v outside [%v, %v]", now, before, after)
	}
}

func TestSimulatedClockRequiresSetTime(t *testing.T) {
	c := clock.New(clock.ModeSimulated)

	if _, err := c.Now(); err != clock.ErrTimeNotSet {
		t.Fatalf("expected ErrTimeNotSet, got %v", err)
	}

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.SetTime(ts)

	now, err := c.Now()
	if err != nil {
		t.Fatalf("Now returned error: %v", err)
	}
	if !now.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, now)
	}

	ms, err := c.NowMs()
	if err != nil {
		t.Fatalf("NowMs returned error: %v", err)
	}
	if ms != ts.UnixMilli() {
		t.Errorf("expected %d ms, got %d", ts.UnixMilli(), ms)
	}
}

func TestLiveClockIgnoresSetTime(t *testing.T) {
	c := clock.New(clock.ModeLive)
	c.SetTime(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))

	now, err := c.Now()
	if err != nil {
		t.Fatalf("Now returned error: %v", err)
	}
	if now.Year() == 2000 {
		t.Error("live clock should not honor SetTime")
	}
}
