package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

const productID = "-//teamclock//time entries//EN"

// ToICS writes stopped entries as calendar events. Open entries have no end
// and are skipped.
func ToICS(entries []timer.TimeEntry, names store.Names, path string) error {
	return toFile(path, "ics", func(w io.Writer) error { return WriteICS(w, entries, names, time.Now()) })
}

func WriteICS(w io.Writer, entries []timer.TimeEntry, names store.Names, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, e := range entries {
		if e.EndTime == nil {
			continue
		}
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, e.ID+"@teamclock")
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, e.StartTime.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, e.EndTime.UTC())
		event.Props.SetText(ical.PropSummary, lookup(names.WorkTypes, e.WorkTypeID))
		event.Props.SetText(ical.PropLocation, lookup(names.Locations, e.LocationID))
		event.Props.SetText(ical.PropDescription, describe(e, names))
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func describe(e timer.TimeEntry, names store.Names) string {
	d := fmt.Sprintf("Worked %s", timer.FormatDuration(e.Duration))
	if e.PausedTime > 0 {
		d += fmt.Sprintf(", paused %s", timer.FormatDuration(e.PausedTime))
	}
	if e.WorkAmount != nil {
		d += ", amount " + strconv.FormatFloat(*e.WorkAmount, 'f', -1, 64)
		if unit := names.Units[e.WorkTypeID]; unit != "" {
			d += " " + unit
		}
	} else {
		d += ", amount pending"
	}
	return d
}
