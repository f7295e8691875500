package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingReaper struct {
	mu    sync.Mutex
	calls int
	idle  time.Duration
}

func (r *countingReaper) ReapIdle(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.idle = idle
	return 1
}

func (r *countingReaper) Count() int { return 0 }

func TestNewReaperWorker_Interval(t *testing.T) {
	testCases := []struct {
		idle time.Duration
		want time.Duration
	}{
		{idle: 2 * time.Minute, want: 30 * time.Second},
		{idle: time.Hour, want: time.Minute},
		{idle: 0, want: time.Minute},
	}

	for _, tc := range testCases {
		w := NewReaperWorker(&countingReaper{}, tc.idle, zerolog.Nop())
		if w.interval != tc.want {
			t.Errorf("idle %s: expected interval %s, got %s", tc.idle, tc.want, w.interval)
		}
	}
}

func TestReaperWorker_Start(t *testing.T) {
	reaper := &countingReaper{}
	w := NewReaperWorker(reaper, time.Hour, zerolog.Nop())
	w.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		reaper.mu.Lock()
		calls := reaper.calls
		reaper.mu.Unlock()
		if calls >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	reaper.mu.Lock()
	defer reaper.mu.Unlock()
	if reaper.calls < 2 {
		t.Fatalf("expected repeated sweeps, got %d", reaper.calls)
	}
	if reaper.idle != time.Hour {
		t.Errorf("expected idle of 1h, got %s", reaper.idle)
	}
}
