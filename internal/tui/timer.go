package tui

import (
	"time"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

// timerModel adapts the shared timer.Machine to the dashboard. The machine
// owns all state; the model only resolves display names and remembers the
// last observed entry so remote changes can trigger a refresh.
type timerModel struct {
	env   *env
	names store.Names

	lastID    string
	lastState timer.State
}

func newTimerModel(e *env) timerModel {
	return timerModel{env: e}
}

func (t *timerModel) start(workTypeID, locationID string) (*timer.TimeEntry, error) {
	return t.env.machine.Start(t.env.ctx, workTypeID, locationID)
}

func (t *timerModel) stop() (*timer.TimeEntry, error) {
	return t.env.machine.Stop(t.env.ctx)
}

func (t *timerModel) cancel() error {
	return t.env.machine.Cancel(t.env.ctx)
}

func (t *timerModel) postpone() (*timer.TimeEntry, error) {
	return t.env.machine.Postpone(t.env.ctx)
}

func (t *timerModel) record(entryID string, amount float64) (*timer.TimeEntry, error) {
	return t.env.machine.RecordWorkAmount(t.env.ctx, entryID, amount)
}

// toggle pauses a running timer and resumes a paused one.
func (t *timerModel) toggle() (*timer.TimeEntry, error) {
	switch t.env.machine.State() {
	case timer.StateRunning:
		return t.env.machine.Pause(t.env.ctx)
	case timer.StatePaused:
		return t.env.machine.Resume(t.env.ctx)
	}
	return nil, nil
}

// changed reports whether the machine moved since the last call, which
// happens when another device acts on the timer.
func (t *timerModel) changed() bool {
	cur := t.env.machine.Current()
	id := ""
	if cur != nil {
		id = cur.ID
	}
	state := cur.State()
	moved := id != t.lastID || state != t.lastState
	t.lastID, t.lastState = id, state
	return moved
}

func (t timerModel) state() timer.State { return t.env.machine.State() }

func (t timerModel) running() bool {
	s := t.state()
	return s == timer.StateRunning || s == timer.StatePaused
}

func (t timerModel) paused() bool { return t.state() == timer.StatePaused }

func (t timerModel) currentElapsed() int64 {
	return t.env.machine.Elapsed(time.Now())
}

func (t timerModel) label() (workType, location string) {
	cur := t.env.machine.Current()
	if cur == nil {
		return "", ""
	}
	workType, location = t.names.WorkTypes[cur.WorkTypeID], t.names.Locations[cur.LocationID]
	if workType == "" {
		workType = cur.WorkTypeID
	}
	if location == "" {
		location = cur.LocationID
	}
	return workType, location
}

func (t timerModel) unit() string {
	cur := t.env.machine.Current()
	if cur == nil {
		return ""
	}
	return t.names.Units[cur.WorkTypeID]
}
