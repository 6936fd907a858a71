package timer

import (
	"context"
	"errors"
	"time"
)

// StaleAfter is how long an entry may run before the next read closes it.
const StaleAfter = 24 * time.Hour

// DefaultResyncInterval is how often a running entry is pushed to the store.
const DefaultResyncInterval = 5 * time.Second

// Restored is the outcome of Restore. AutoClosed is set when a stale running
// entry was closed instead of being resumed; Entry is then nil.
type Restored struct {
	Entry      *TimeEntry
	Elapsed    int64
	AutoClosed *TimeEntry
}

// Restore rehydrates the current entry from the store. A stopped entry that
// is still awaiting its work amount stays current.
func (m *Machine) Restore(ctx context.Context) (Restored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest, err := m.fetchOpen(ctx)
	if err != nil {
		return Restored{}, err
	}
	now := m.clock()
	if latest == nil {
		if m.current.Open() {
			m.setCurrent(nil)
		}
		return Restored{}, nil
	}

	if latest.IsRunning && now.Sub(latest.StartTime) > StaleAfter {
		applyStop(latest, now)
		latest.DeviceID = m.session.DeviceID
		if err := m.store.UpdateEntry(ctx, latest); err != nil {
			return Restored{}, persistErr("close stale entry", err)
		}
		m.logger.Info("Auto-closed stale timer",
			"entry_id", latest.ID,
			"started", latest.StartTime,
			"duration", latest.Duration)
		for _, o := range m.observers {
			o.StaleClosed(latest.Clone())
		}
		m.setCurrent(nil)
		return Restored{AutoClosed: latest.Clone()}, nil
	}

	m.setCurrent(latest)
	return Restored{Entry: latest.Clone(), Elapsed: latest.Elapsed(now)}, nil
}

// fetchOpen returns the newest open entry of the session, if any.
func (m *Machine) fetchOpen(ctx context.Context) (*TimeEntry, error) {
	open, err := m.store.QueryEntries(ctx, EntryFilter{
		UserID: m.session.UserID,
		TeamID: m.session.TeamID,
		Open:   true,
	})
	if err != nil {
		return nil, persistErr("query open entries", err)
	}
	var latest *TimeEntry
	n := 0
	for i := range open {
		if !open[i].Open() {
			continue
		}
		n++
		if latest == nil || open[i].StartTime.After(latest.StartTime) {
			latest = open[i].Clone()
		}
	}
	if n > 1 {
		m.logger.Warn("Multiple active timers found, using the newest", "count", n, "entry_id", latest.ID)
	}
	return latest, nil
}

// MergeResult reports what ApplyRemote did with an incoming document.
type MergeResult int

const (
	MergeIgnored MergeResult = iota
	MergeIgnoredEcho
	MergeUpdated
	MergeAdopted
	MergeClosed
)

func (r MergeResult) String() string {
	switch r {
	case MergeIgnoredEcho:
		return "echo"
	case MergeUpdated:
		return "updated"
	case MergeAdopted:
		return "adopted"
	case MergeClosed:
		return "closed"
	default:
		return "ignored"
	}
}

// ApplyRemote merges a document observed on the live channel into local
// state. remote is nil when the document with the given id was deleted.
// Documents last written by this device are echoes of our own writes and
// are dropped.
func (m *Machine) ApplyRemote(id string, remote *TimeEntry) MergeResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if remote != nil && remote.DeviceID == m.session.DeviceID {
		return MergeIgnoredEcho
	}
	return m.mergeLocked(id, remote)
}

func (m *Machine) mergeLocked(id string, remote *TimeEntry) MergeResult {
	cur := m.current
	if remote == nil {
		if cur != nil && cur.ID == id {
			m.logger.Info("Timer removed on another device", "entry_id", id)
			m.setCurrent(nil)
			return MergeClosed
		}
		return MergeIgnored
	}
	if remote.UserID != m.session.UserID || remote.TeamID != m.session.TeamID {
		return MergeIgnored
	}

	if cur == nil || (cur.ID != remote.ID && !cur.Open()) {
		if !remote.Open() {
			return MergeIgnored
		}
		m.logger.Info("Adopted timer started on another device", "entry_id", remote.ID, "device_id", remote.DeviceID)
		m.setCurrent(remote.Clone())
		return MergeAdopted
	}
	if cur.ID != remote.ID {
		m.logger.Warn("Ignoring remote timer while another is active",
			"entry_id", cur.ID, "remote_entry_id", remote.ID)
		return MergeIgnored
	}

	if !remote.Open() {
		// Stopped or completed elsewhere; the pending queue owns it now.
		m.logger.Info("Timer stopped on another device", "entry_id", remote.ID, "device_id", remote.DeviceID)
		m.setCurrent(nil)
		return MergeClosed
	}
	if !cur.Open() {
		return MergeIgnored
	}

	next := cur.Clone()
	next.IsRunning = remote.IsRunning
	next.PausedTime = remote.PausedTime
	next.LastPauseTime = nil
	if remote.LastPauseTime != nil {
		t := *remote.LastPauseTime
		next.LastPauseTime = &t
	}
	next.WorkTypeID = remote.WorkTypeID
	next.LocationID = remote.LocationID
	next.DeviceID = remote.DeviceID
	next.LastUpdate = remote.LastUpdate
	m.current = next
	return MergeUpdated
}

// Sync reconciles the current entry with the store. An open entry is read
// back first: when another writer moved it on, the stored document is merged
// as a remote change instead of being overwritten. Otherwise a running entry
// is pushed so other devices see a recent snapshot. When idle it re-fetches,
// adopting a timer started on another device.
func (m *Machine) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current.State() {
	case StateRunning, StatePaused:
		id := m.current.ID
		stored, err := m.store.GetEntry(ctx, id)
		if err != nil {
			return persistErr("get entry", err)
		}
		if stored == nil {
			m.logger.Info("Timer no longer exists, clearing", "entry_id", id)
			m.setCurrent(nil)
			return nil
		}
		if !sameTimerState(m.current, stored) {
			r := m.mergeLocked(id, stored)
			m.logger.Info("Timer changed in store, merged", "entry_id", id, "result", r.String())
			return nil
		}
		if m.current.State() != StateRunning {
			return nil
		}
		next := m.current.Clone()
		next.DeviceID = m.session.DeviceID
		err = m.store.UpdateEntry(ctx, next)
		if errors.Is(err, ErrNotFound) {
			m.logger.Info("Timer no longer exists, clearing", "entry_id", next.ID)
			m.setCurrent(nil)
			return nil
		}
		if err != nil {
			return persistErr("sync entry", err)
		}
		m.current = next
	case StateIdle:
		latest, err := m.fetchOpen(ctx)
		if err != nil {
			return err
		}
		if latest != nil {
			m.logger.Info("Picked up timer from store", "entry_id", latest.ID)
			m.setCurrent(latest)
		}
	}
	return nil
}

// sameTimerState reports whether a and b agree on every field a transition
// can change.
func sameTimerState(a, b *TimeEntry) bool {
	return a.IsRunning == b.IsRunning &&
		a.PausedTime == b.PausedTime &&
		a.WorkTypeID == b.WorkTypeID &&
		a.LocationID == b.LocationID &&
		a.Status == b.Status &&
		sameTime(a.EndTime, b.EndTime) &&
		sameTime(a.LastPauseTime, b.LastPauseTime)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// RunResync calls Sync every interval until ctx is done. Failures are logged
// and retried on the next interval.
func (m *Machine) RunResync(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := m.Sync(ctx); err != nil {
				m.logger.Warn("Timer resync failed", "error", err)
			}
		}
	}
}

// Follow watches the current entry's document and merges every change into
// local state, moving the subscription whenever the current entry changes.
func (m *Machine) Follow(ctx context.Context, w Watcher) error {
	for {
		m.mu.Lock()
		id := ""
		if m.current != nil {
			id = m.current.ID
		}
		changed := m.changed
		m.mu.Unlock()

		unsubscribe := func() {}
		if id != "" {
			var err error
			unsubscribe, err = w.WatchEntry(ctx, id, func(e *TimeEntry) {
				m.ApplyRemote(id, e)
			})
			if err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			unsubscribe()
			return nil
		case <-changed:
			unsubscribe()
		}
	}
}
