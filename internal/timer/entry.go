package timer

import "time"

// Status is the resolution state of a stopped entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// State is the lifecycle position of the machine's current entry.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// TimeEntry is one timed work session. The JSON shape is the document shape
// shared with other devices.
type TimeEntry struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	TeamID        string     `json:"teamId"`
	WorkTypeID    string     `json:"workTypeId"`
	LocationID    string     `json:"locationId"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	PausedTime    int64      `json:"pausedTime"` // seconds
	LastPauseTime *time.Time `json:"lastPauseTime,omitempty"`
	IsRunning     bool       `json:"isRunning"`
	Duration      int64      `json:"duration"` // seconds, frozen at stop
	WorkAmount    *float64   `json:"workAmount,omitempty"`
	Status        Status     `json:"status"`
	DeviceID      string     `json:"deviceId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUpdate    time.Time  `json:"lastUpdate"`
}

// State derives the lifecycle state from the entry's fields.
func (e *TimeEntry) State() State {
	switch {
	case e == nil:
		return StateIdle
	case e.EndTime != nil:
		return StateStopped
	case e.IsRunning:
		return StateRunning
	case e.LastPauseTime != nil:
		return StatePaused
	default:
		return StateStopped
	}
}

// Open reports whether the entry is running or paused.
func (e *TimeEntry) Open() bool {
	s := e.State()
	return s == StateRunning || s == StatePaused
}

// Elapsed is the net worked seconds at now. A paused entry is frozen at its
// pause point and a stopped entry reports its final duration.
func (e *TimeEntry) Elapsed(now time.Time) int64 {
	switch e.State() {
	case StateRunning:
		return NetDuration(ElapsedSeconds(now, e.StartTime), e.PausedTime)
	case StatePaused:
		return NetDuration(ElapsedSeconds(*e.LastPauseTime, e.StartTime), e.PausedTime)
	case StateStopped:
		return e.Duration
	}
	return 0
}

// Clone returns a deep copy so callers can never alias machine state.
func (e *TimeEntry) Clone() *TimeEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	if e.LastPauseTime != nil {
		t := *e.LastPauseTime
		c.LastPauseTime = &t
	}
	if e.WorkAmount != nil {
		v := *e.WorkAmount
		c.WorkAmount = &v
	}
	return &c
}

// EntryFilter holds equality predicates for QueryEntries. Zero values match
// everything.
type EntryFilter struct {
	UserID    string
	TeamID    string
	Status    Status
	IsRunning *bool
	Open      bool // end_time absent
	From      *time.Time
	To        *time.Time
	Limit     int
}
