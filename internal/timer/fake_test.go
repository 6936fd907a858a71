package timer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*TimeEntry
	seq     int
	now     func() time.Time

	failCreate error
	failUpdate error
	failQuery  error
	failDelete error
	updates    int
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{entries: make(map[string]*TimeEntry), now: now}
}

func (s *fakeStore) CreateEntry(_ context.Context, e *TimeEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return "", s.failCreate
	}
	s.seq++
	id := fmt.Sprintf("e%d", s.seq)
	e.CreatedAt = s.now()
	e.LastUpdate = e.CreatedAt
	c := e.Clone()
	c.ID = id
	s.entries[id] = c
	return id, nil
}

func (s *fakeStore) UpdateEntry(_ context.Context, e *TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.entries[e.ID]; !ok {
		return fmt.Errorf("update entry %s: %w", e.ID, ErrNotFound)
	}
	s.updates++
	e.LastUpdate = s.now()
	s.entries[e.ID] = e.Clone()
	return nil
}

func (s *fakeStore) GetEntry(_ context.Context, id string) (*TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id].Clone(), nil
}

func (s *fakeStore) QueryEntries(_ context.Context, f EntryFilter) ([]TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	var out []TimeEntry
	for _, e := range s.entries {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.TeamID != "" && e.TeamID != f.TeamID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.IsRunning != nil && e.IsRunning != *f.IsRunning {
			continue
		}
		if f.Open && e.EndTime != nil {
			continue
		}
		out = append(out, *e.Clone())
	}
	return out, nil
}

func (s *fakeStore) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.entries, id)
	return nil
}

func (s *fakeStore) put(e *TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e.Clone()
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	failures    int
	stale       []*TimeEntry
}

func (o *recordingObserver) Transition(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, op)
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) StaleClosed(e *TimeEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale = append(o.stale, e)
}

var testSession = Session{UserID: "u1", TeamID: "t1", DeviceID: "dev-a"}
