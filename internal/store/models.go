package store

import "time"

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Join request states.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

type Team struct {
	ID        string
	Name      string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	TeamID    string
	UserID    string
	Role      string
	CreatedAt time.Time
}

type JoinRequest struct {
	ID        string
	TeamID    string
	UserID    string
	Message   string
	Status    string
	CreatedAt time.Time
	DecidedAt *time.Time
	DecidedBy string
}

// WorkType is a kind of work a team tracks. Unit names what the work amount
// of a completed entry counts (pieces, square meters, ...).
type WorkType struct {
	ID        string
	TeamID    string
	Name      string
	Unit      string
	Color     string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Location struct {
	ID        string
	TeamID    string
	Name      string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Setting struct {
	Key   string
	Value string
}

// DailySummary represents aggregated time and work per work type per day.
type DailySummary struct {
	Date          string
	WorkTypeID    string
	WorkTypeName  string
	WorkTypeColor string
	Unit          string
	TotalSeconds  int64
	TotalAmount   float64
	EntryCount    int
}

// SummaryFilter selects the entries GetDailySummary aggregates. Empty ids
// match everything.
type SummaryFilter struct {
	TeamID string
	UserID string
	From   time.Time
	To     time.Time
}
