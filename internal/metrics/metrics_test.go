package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveWriteIncrementsCounters(t *testing.T) {
	c := New(Source{}, nil)
	c.ObserveWrite(3, 1)
	if got := testutil.ToFloat64(c.writesTotal); got != 3 {
		t.Fatalf("writesTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.rejectsTotal); got != 1 {
		t.Fatalf("rejectsTotal = %v, want 1", got)
	}
}

func TestSampleReadsSource(t *testing.T) {
	c := New(Source{
		LogHead:       func() uint64 { return 42 },
		ActiveWatches: func() int { return 3 },
	}, nil)
	c.sample()
	if got := testutil.ToFloat64(c.logHeadGauge); got != 42 {
		t.Fatalf("logHeadGauge = %v, want 42", got)
	}
	if got := testutil.ToFloat64(c.watchesGauge); got != 3 {
		t.Fatalf("watchesGauge = %v, want 3", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c := New(Source{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after context cancellation")
	}
}
