package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewPending
	viewReports
	viewCatalog
	viewSettings
)

var viewNames = []string{"Dashboard", "Pending", "Reports", "Catalog", "Settings"}

// env is shared by every view.
type env struct {
	ctx     context.Context
	store   *store.Store
	machine *timer.Machine
	pending *timer.PendingQueue
}

func (e *env) session() timer.Session { return e.machine.Session() }

// --- Messages ---

type timerStartedMsg struct {
	entry *timer.TimeEntry
}

type timerStoppedMsg struct {
	entry *timer.TimeEntry
}

// entryResolvedMsg is sent when a stopped entry left the dashboard, either
// completed with an amount or postponed to the pending list.
type entryResolvedMsg struct {
	entry     *timer.TimeEntry
	postponed bool
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

func errCmd(prefix string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
	}
}

func statusCmd(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text} }
}

// --- Helpers ---

func formatSeconds(secs int64) string {
	return timer.FormatDuration(secs)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func formatAmount(amount *float64, unit string) string {
	if amount == nil {
		return "-"
	}
	s := fmt.Sprintf("%g", *amount)
	if unit != "" {
		s += " " + unit
	}
	return s
}
