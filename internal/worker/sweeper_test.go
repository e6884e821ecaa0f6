package worker

import (
    "context"
    "errors"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

// stubEngine counts sweep calls and can fail the first n of them.
type stubEngine struct {
    calls    atomic.Int64
    failNext atomic.Int64
}

func (s *stubEngine) SweepExpired(context.Context) (int64, error) {
    s.calls.Add(1)
    if s.failNext.Add(-1) >= 0 {
        return 0, errors.New("store unreachable")
    }
    return 1, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
    eng := &stubEngine{}
    w := NewExpirySweeper(eng, 10*time.Millisecond)

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        w.Start(ctx)
        close(done)
    }()

    require.Eventually(t, func() bool { return eng.calls.Load() >= 3 },
        time.Second, 5*time.Millisecond)
    cancel()

    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("sweeper did not stop on context cancellation")
    }
}

func TestSweeperSurvivesFailedSweeps(t *testing.T) {
    eng := &stubEngine{}
    eng.failNext.Store(2) // first two sweeps fail
    w := NewExpirySweeper(eng, 10*time.Millisecond)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go w.Start(ctx)

    // the loop keeps ticking past the failures
    require.Eventually(t, func() bool { return eng.calls.Load() >= 4 },
        time.Second, 5*time.Millisecond)
}

func TestSweeperDefaultsInterval(t *testing.T) {
    w := NewExpirySweeper(&stubEngine{}, 0)
    assert.Equal(t, time.Minute, w.interval)
}
