package timer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// PurgeMode selects what Purge does with unresolved entries.
type PurgeMode int

const (
	// PurgeZeroFill completes entries with a work amount of 0, keeping the time.
	PurgeZeroFill PurgeMode = iota
	// PurgeDelete removes entries and their time.
	PurgeDelete
)

// PendingQueue manages stopped entries that still need a work amount.
type PendingQueue struct {
	store    Store
	deviceID string
	logger   *slog.Logger
}

func NewPendingQueue(store Store, deviceID string, logger *slog.Logger) *PendingQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingQueue{store: store, deviceID: deviceID, logger: logger}
}

// List returns the user's stopped pending entries in teamID, newest first.
// An empty teamID lists every team.
func (q *PendingQueue) List(ctx context.Context, userID, teamID string) ([]TimeEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("list pending requires a user: %w", ErrInvalidInput)
	}
	return listPending(ctx, q.store, EntryFilter{UserID: userID, TeamID: teamID, Status: StatusPending})
}

// Resolve records the work amount of one of userID's pending entries.
func (q *PendingQueue) Resolve(ctx context.Context, userID, entryID string, amount float64) (*TimeEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("resolve requires a user: %w", ErrInvalidInput)
	}
	return completeEntry(ctx, q.store, owner{userID: userID}, entryID, amount, q.deviceID)
}

// Purge force-resolves every stopped pending entry of userID in teamID.
// Open entries are left alone. It is an admin action; callers check the
// acting user's role.
func (q *PendingQueue) Purge(ctx context.Context, userID, teamID string, mode PurgeMode) (int, error) {
	if userID == "" || teamID == "" {
		return 0, fmt.Errorf("purge requires user and team: %w", ErrInvalidInput)
	}
	entries, err := listPending(ctx, q.store, EntryFilter{UserID: userID, TeamID: teamID, Status: StatusPending})
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range entries {
		e := &entries[i]
		switch mode {
		case PurgeDelete:
			if err := q.store.DeleteEntry(ctx, e.ID); err != nil {
				return n, persistErr("purge entry", err)
			}
		default:
			zero := 0.0
			e.WorkAmount = &zero
			e.Status = StatusCompleted
			e.DeviceID = q.deviceID
			if err := q.store.UpdateEntry(ctx, e); err != nil {
				return n, persistErr("purge entry", err)
			}
		}
		n++
	}
	q.logger.Info("Purged pending entries", "user_id", userID, "team_id", teamID, "count", n, "delete", mode == PurgeDelete)
	return n, nil
}

func listPending(ctx context.Context, s Store, f EntryFilter) ([]TimeEntry, error) {
	all, err := s.QueryEntries(ctx, f)
	if err != nil {
		return nil, persistErr("query pending entries", err)
	}
	var pending []TimeEntry
	for _, e := range all {
		if e.State() == StateStopped && e.Status == StatusPending {
			pending = append(pending, e)
		}
	}
	slices.SortFunc(pending, func(a, b TimeEntry) int {
		return b.StartTime.Compare(a.StartTime)
	})
	return pending, nil
}

// owner restricts which entries a caller may complete. An empty teamID
// matches any team.
type owner struct {
	userID string
	teamID string
}

func (o owner) owns(e *TimeEntry) bool {
	return e.UserID == o.userID && (o.teamID == "" || e.TeamID == o.teamID)
}

// completeEntry moves a stopped pending entry of o to completed. Entries
// belonging to someone else are reported as not found.
func completeEntry(ctx context.Context, s Store, o owner, id string, amount float64, deviceID string) (*TimeEntry, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, fmt.Errorf("work amount %v must be positive: %w", amount, ErrInvalidInput)
	}
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, persistErr("get entry", err)
	}
	if e == nil {
		return nil, persistErr("get entry", fmt.Errorf("%s: %w", id, ErrNotFound))
	}
	if !o.owns(e) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if e.State() != StateStopped || e.Status != StatusPending {
		return nil, fmt.Errorf("record work amount on %s %s entry: %w", e.State(), e.Status, ErrInvalidTransition)
	}
	next := e.Clone()
	next.WorkAmount = &amount
	next.Status = StatusCompleted
	next.DeviceID = deviceID
	if err := s.UpdateEntry(ctx, next); err != nil {
		return nil, persistErr("complete entry", err)
	}
	return next, nil
}
