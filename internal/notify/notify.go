// Package notify posts desktop notifications for timer events the user
// would otherwise miss.
package notify

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/sadopc/teamclock/internal/timer"
)

const appTitle = "teamclock"

// Notifier implements timer.Observer.
type Notifier struct {
	send   func(title, message string) error
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

// Transition reports writes that could not be saved. Other failures are
// user errors the caller already shows.
func (n *Notifier) Transition(op string, err error) {
	if err == nil || !errors.Is(err, timer.ErrPersistence) {
		return
	}
	n.post(appTitle+": timer not saved", fmt.Sprintf("Could not %s the timer. Check your connection.", opVerb(op)))
}

func (n *Notifier) StaleClosed(e *timer.TimeEntry) {
	n.post(appTitle+": timer auto-closed", fmt.Sprintf(
		"A timer started %s ran over 24 hours and was stopped at %s. Enter its work amount in the pending list.",
		e.StartTime.Local().Format("Mon 15:04"), timer.FormatDuration(e.Duration)))
}

// PendingReminder nudges the user about entries still missing a work amount.
func (n *Notifier) PendingReminder(count int) {
	if count <= 0 {
		return
	}
	noun := "entry"
	if count > 1 {
		noun = "entries"
	}
	n.post(appTitle+": work amount missing", fmt.Sprintf("%d %s waiting for a work amount.", count, noun))
}

func (n *Notifier) post(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Desktop notification failed", "error", err)
	}
}

func opVerb(op string) string {
	switch op {
	case "record_work_amount":
		return "record the work amount for"
	default:
		return op
	}
}
