package store

import (
	"context"
	"slices"
	"sync"

	"github.com/sadopc/teamclock/internal/timer"
)

// subscription delivers the latest version of one document to fn on its own
// goroutine. Versions written while fn is busy are coalesced, so a slow
// callback only ever sees the newest state.
type subscription struct {
	fn func(*timer.TimeEntry)

	mu      sync.Mutex
	latest  *timer.TimeEntry
	pending bool

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (sub *subscription) deliver(e *timer.TimeEntry) {
	sub.mu.Lock()
	sub.latest = e
	sub.pending = true
	sub.mu.Unlock()
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscription) run() {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
			sub.mu.Lock()
			e, ok := sub.latest, sub.pending
			sub.latest, sub.pending = nil, false
			sub.mu.Unlock()
			if ok {
				sub.fn(e)
			}
		}
	}
}

func (sub *subscription) stop() {
	sub.once.Do(func() { close(sub.done) })
}

// WatchEntry calls fn with every later version of the entry written through
// this store, and with nil when the entry is deleted. The subscription ends
// when ctx is done or the returned function is called.
func (s *Store) WatchEntry(ctx context.Context, id string, fn func(*timer.TimeEntry)) (func(), error) {
	sub := &subscription{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.watchMu.Lock()
	s.subs[id] = append(s.subs[id], sub)
	s.watchMu.Unlock()

	go sub.run()

	unsubscribe := func() {
		s.watchMu.Lock()
		subs := slices.DeleteFunc(s.subs[id], func(x *subscription) bool { return x == sub })
		if len(subs) == 0 {
			delete(s.subs, id)
		} else {
			s.subs[id] = subs
		}
		s.watchMu.Unlock()
		sub.stop()
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()
	return unsubscribe, nil
}

func (s *Store) publish(id string, e *timer.TimeEntry) {
	s.watchMu.Lock()
	subs := slices.Clone(s.subs[id])
	s.watchMu.Unlock()
	for _, sub := range subs {
		sub.deliver(e.Clone())
	}
}

func (s *Store) closeWatches() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for id, subs := range s.subs {
		for _, sub := range subs {
			sub.stop()
		}
		delete(s.subs, id)
	}
}
