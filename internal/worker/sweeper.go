// Package worker owns the background task that enforces reservation TTLs.
package worker

import (
    "context"
    "log"
    "time"
)

// ReservationSweeper is the slice of the engine the worker needs.
type ReservationSweeper interface {
    SweepExpired(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically releases reservations whose expiry has passed.
// It is the sole mechanism enforcing the hold TTL: no per-reservation timer
// is ever scheduled, so the number of timers stays constant and expiry
// survives process restarts because it is derived from persisted timestamps.
type ExpirySweeper struct {
    engine   ReservationSweeper
    interval time.Duration
}

// NewExpirySweeper returns a sweeper that runs every interval (60 seconds in
// production).
func NewExpirySweeper(engine ReservationSweeper, interval time.Duration) *ExpirySweeper {
    if interval <= 0 {
        interval = time.Minute
    }
    return &ExpirySweeper{engine: engine, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.  Ticks are consumed by
// this single goroutine, so a sweep that outlives the interval delays the
// next tick instead of overlapping it.  A failed sweep is logged and retried
// on the next tick; it never terminates the loop.
func (w *ExpirySweeper) Start(ctx context.Context) {
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()

    log.Printf("sweeper: started (interval=%s)", w.interval)
    for {
        select {
        case <-ctx.Done():
            log.Printf("sweeper: stopped")
            return
        case <-ticker.C:
            w.sweep(ctx)
        }
    }
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
    released, err := w.engine.SweepExpired(ctx)
    if err != nil {
        log.Printf("sweeper: sweep failed: %v", err)
        return
    }
    if released > 0 {
        log.Printf("sweeper: released %d expired reservations", released)
    }
}
