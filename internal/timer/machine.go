package timer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// Machine owns the current entry of one session. Transitions, remote merges
// and resync pushes are serialized by mu, including their store call, so a
// cancel can never overtake an update for the same entry.
type Machine struct {
	mu        sync.Mutex
	store     Store
	session   Session
	now       func() time.Time
	logger    *slog.Logger
	observers []Observer

	current *TimeEntry
	// changed is closed and replaced whenever the current entry id changes.
	changed chan struct{}
}

func NewMachine(store Store, session Session, opts ...Option) (*Machine, error) {
	if err := session.validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		store:   store,
		session: session,
		now:     time.Now,
		logger:  slog.Default(),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("user_id", session.UserID, "team_id", session.TeamID)
	return m, nil
}

func (m *Machine) Session() Session { return m.session }

// Current returns a copy of the current entry, or nil when idle.
func (m *Machine) Current() *TimeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.State()
}

// Elapsed is the displayed net seconds of the current entry at now.
func (m *Machine) Elapsed(now time.Time) int64 {
	_, elapsed := m.Snapshot(now)
	return elapsed
}

// Snapshot reads state and elapsed atomically.
func (m *Machine) Snapshot(now time.Time) (State, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return StateIdle, 0
	}
	return m.current.State(), m.current.Elapsed(now)
}

// Start opens a new running entry for the session's user and team.
func (m *Machine) Start(ctx context.Context, workTypeID, locationID string) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("start", err) }()

	if workTypeID == "" || locationID == "" {
		return nil, fmt.Errorf("start requires work type and location: %w", ErrInvalidInput)
	}
	if m.current.Open() {
		return nil, ErrConflictingActiveTimer
	}
	open, err := m.store.QueryEntries(ctx, EntryFilter{
		UserID: m.session.UserID,
		TeamID: m.session.TeamID,
		Open:   true,
	})
	if err != nil {
		return nil, persistErr("query open entries", err)
	}
	for i := range open {
		if open[i].Open() {
			m.logger.Warn("Refusing to start over an active timer", "entry_id", open[i].ID)
			return nil, ErrConflictingActiveTimer
		}
	}

	now := m.clock()
	e := &TimeEntry{
		UserID:     m.session.UserID,
		TeamID:     m.session.TeamID,
		WorkTypeID: workTypeID,
		LocationID: locationID,
		StartTime:  now,
		IsRunning:  true,
		Status:     StatusPending,
		DeviceID:   m.session.DeviceID,
	}
	id, err := m.store.CreateEntry(ctx, e)
	if err != nil {
		return nil, persistErr("create entry", err)
	}
	e.ID = id
	m.setCurrent(e)
	m.logger.Debug("Timer started", "entry_id", id, "work_type_id", workTypeID, "location_id", locationID)
	return e.Clone(), nil
}

func (m *Machine) Pause(ctx context.Context) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("pause", err) }()

	if s := m.current.State(); s != StateRunning {
		return nil, invalidTransition("pause", s)
	}
	now := m.clock()
	next := m.current.Clone()
	next.IsRunning = false
	next.LastPauseTime = &now
	if err := m.persist(ctx, "pause", next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (m *Machine) Resume(ctx context.Context) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("resume", err) }()

	if s := m.current.State(); s != StatePaused {
		return nil, invalidTransition("resume", s)
	}
	now := m.clock()
	next := m.current.Clone()
	next.PausedTime = AccumulatedPause(next.PausedTime, next.LastPauseTime, now)
	next.IsRunning = true
	next.LastPauseTime = nil
	if err := m.persist(ctx, "resume", next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Stop freezes the current entry. It stays current in the stopped state until
// a work amount is recorded or the entry is postponed.
func (m *Machine) Stop(ctx context.Context) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("stop", err) }()

	next, err := m.stopLocked(ctx)
	if err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (m *Machine) stopLocked(ctx context.Context) (*TimeEntry, error) {
	if !m.current.Open() {
		return nil, invalidTransition("stop", m.current.State())
	}
	next := m.current.Clone()
	applyStop(next, m.clock())
	if err := m.persist(ctx, "stop", next); err != nil {
		return nil, err
	}
	m.logger.Debug("Timer stopped", "entry_id", next.ID, "duration", next.Duration, "paused", next.PausedTime)
	return next, nil
}

// Cancel deletes the open entry and discards its time.
func (m *Machine) Cancel(ctx context.Context) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("cancel", err) }()

	if !m.current.Open() {
		return invalidTransition("cancel", m.current.State())
	}
	id := m.current.ID
	if err := m.store.DeleteEntry(ctx, id); err != nil {
		return persistErr("delete entry", err)
	}
	m.setCurrent(nil)
	m.logger.Debug("Timer cancelled", "entry_id", id)
	return nil
}

// Postpone parks the current entry in the pending queue without a work
// amount, stopping it first when it is still open, and returns to idle.
func (m *Machine) Postpone(ctx context.Context) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("postpone", err) }()

	e := m.current
	switch e.State() {
	case StateRunning, StatePaused:
		if e, err = m.stopLocked(ctx); err != nil {
			return nil, err
		}
	case StateStopped:
		if e.Status != StatusPending || e.WorkAmount != nil {
			e = e.Clone()
			e.Status = StatusPending
			e.WorkAmount = nil
			if err := m.persist(ctx, "postpone", e); err != nil {
				return nil, err
			}
		}
	default:
		return nil, invalidTransition("postpone", StateIdle)
	}
	m.setCurrent(nil)
	return e.Clone(), nil
}

// RecordWorkAmount completes a stopped pending entry of the session's user
// and team.
func (m *Machine) RecordWorkAmount(ctx context.Context, entryID string, amount float64) (_ *TimeEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.observe("record_work_amount", err) }()

	e, err := completeEntry(ctx, m.store, owner{userID: m.session.UserID, teamID: m.session.TeamID}, entryID, amount, m.session.DeviceID)
	if err != nil {
		return nil, err
	}
	if m.current != nil && m.current.ID == entryID {
		m.setCurrent(nil)
	}
	return e, nil
}

// applyStop folds any open pause into pausedTime and freezes the duration.
func applyStop(e *TimeEntry, now time.Time) {
	paused := AccumulatedPause(e.PausedTime, e.LastPauseTime, now)
	e.PausedTime = paused
	e.LastPauseTime = nil
	e.IsRunning = false
	e.EndTime = &now
	e.Duration = NetDuration(ElapsedSeconds(now, e.StartTime), paused)
}

// persist writes next and commits it locally only when the store accepted it.
func (m *Machine) persist(ctx context.Context, op string, next *TimeEntry) error {
	next.DeviceID = m.session.DeviceID
	if err := m.store.UpdateEntry(ctx, next); err != nil {
		return persistErr(op+" entry", err)
	}
	m.setCurrent(next)
	return nil
}

func (m *Machine) setCurrent(e *TimeEntry) {
	prev := ""
	if m.current != nil {
		prev = m.current.ID
	}
	m.current = e
	next := ""
	if e != nil {
		next = e.ID
	}
	if prev != next {
		close(m.changed)
		m.changed = make(chan struct{})
	}
}

func (m *Machine) clock() time.Time {
	return m.now().UTC().Truncate(time.Second)
}

func (m *Machine) observe(op string, err error) {
	for _, o := range m.observers {
		o.Transition(op, err)
	}
}
