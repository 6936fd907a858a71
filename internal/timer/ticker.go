package timer

import (
	"context"
	"time"
)

// Snapshotter is read by the ticker; *Machine implements it.
type Snapshotter interface {
	Snapshot(now time.Time) (State, int64)
}

// Ticker republishes the displayed elapsed time of a running entry. Every
// tick recomputes from absolute timestamps, so missed ticks never drift.
type Ticker struct {
	src    Snapshotter
	period time.Duration
	emit   func(elapsed int64)
}

func NewTicker(src Snapshotter, period time.Duration, emit func(elapsed int64)) *Ticker {
	if period <= 0 {
		period = time.Second
	}
	return &Ticker{src: src, period: period, emit: emit}
}

// Tick emits the elapsed value at now and reports whether it did. Nothing is
// emitted unless the entry is running.
func (t *Ticker) Tick(now time.Time) bool {
	state, elapsed := t.src.Snapshot(now)
	if state != StateRunning {
		return false
	}
	t.emit(elapsed)
	return true
}

// Run ticks until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.period)
	defer tk.Stop()
	t.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tk.C:
			t.Tick(now)
		}
	}
}
