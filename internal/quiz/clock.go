package quiz

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Stop is idempotent and never blocks
// waiting for an in-flight callback.
type Handle interface {
	Stop()
}

// Scheduler owns the autonomous event sources of a session: the repeating
// countdown tick and the one-shot post-submit delivery.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Handle
	After(delay time.Duration, fn func()) Handle
}

// Clock is the wall-clock Scheduler.
type Clock struct{}

// NewClock returns a Scheduler backed by time.Ticker and time.AfterFunc.
func NewClock() Clock {
	return Clock{}
}

// Every runs fn every interval on its own goroutine until the handle is stopped.
// A tick that was already selected when Stop is called may still run once;
// callers must tolerate that.
func (Clock) Every(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-h.done:
				return
			case <-h.ticker.C:
				fn()
			}
		}
	}()

	return h
}

// After runs fn once after delay.
func (Clock) After(delay time.Duration, fn func()) Handle {
	return afterHandle{timer: time.AfterFunc(delay, fn)}
}

type tickerHandle struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
	})
}

type afterHandle struct {
	timer *time.Timer
}

func (h afterHandle) Stop() {
	h.timer.Stop()
}
