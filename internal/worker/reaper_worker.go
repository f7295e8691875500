package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SessionReaper closes sessions that have gone idle.
type SessionReaper interface {
	ReapIdle(idle time.Duration) int
	Count() int
}

// ReaperWorker periodically closes quiz sessions nobody has touched for the
// idle period, which stops their timers and clears their snapshots.
type ReaperWorker struct {
	sessions SessionReaper
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
}

// NewReaperWorker creates a new ReaperWorker. It sweeps every idle/4, at least
// once a minute.
func NewReaperWorker(sessions SessionReaper, idle time.Duration, log zerolog.Logger) *ReaperWorker {
	interval := idle / 4
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	return &ReaperWorker{
		sessions: sessions,
		idle:     idle,
		interval: interval,
		log:      log.With().Str("component", "reaper_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ReaperWorker) Start(ctx context.Context) {
	w.log.Info().Dur("idle", w.idle).Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ReaperWorker) sweep() {
	if n := w.sessions.ReapIdle(w.idle); n > 0 {
		w.log.Info().
			Int("reaped", n).
			Int("live", w.sessions.Count()).
			Msg("Closed idle sessions")
	}
}
