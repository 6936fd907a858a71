package timer

import (
	"context"
	"fmt"
)

// Store is the document store the machine persists entries through.
// GetEntry returns (nil, nil) when the id is absent; UpdateEntry returns an
// error wrapping ErrNotFound in that case. The store assigns ID on create and
// owns the CreatedAt/LastUpdate bookkeeping fields.
type Store interface {
	CreateEntry(ctx context.Context, e *TimeEntry) (string, error)
	UpdateEntry(ctx context.Context, e *TimeEntry) error
	GetEntry(ctx context.Context, id string) (*TimeEntry, error)
	QueryEntries(ctx context.Context, f EntryFilter) ([]TimeEntry, error)
	DeleteEntry(ctx context.Context, id string) error
}

// Watcher delivers the latest state of one entry document whenever it
// changes. A nil entry means the document was deleted.
type Watcher interface {
	WatchEntry(ctx context.Context, id string, fn func(*TimeEntry)) (unsubscribe func(), err error)
}

// Observer receives transition outcomes. Implementations must not call back
// into the machine.
type Observer interface {
	Transition(op string, err error)
	StaleClosed(e *TimeEntry)
}

// Session identifies who owns the machine and which device it runs on.
type Session struct {
	UserID   string
	TeamID   string
	DeviceID string
}

func (s Session) validate() error {
	if s.UserID == "" || s.TeamID == "" || s.DeviceID == "" {
		return fmt.Errorf("session requires user, team and device ids: %w", ErrInvalidInput)
	}
	return nil
}
