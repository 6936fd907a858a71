package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

var csvHeader = []string{
	"ID", "User", "Work type", "Location", "Start", "End",
	"Duration (s)", "Duration", "Paused (s)", "Amount", "Unit", "Status",
}

func ToCSV(entries []timer.TimeEntry, names store.Names, path string) error {
	return toFile(path, "csv", func(w io.Writer) error { return WriteCSV(w, entries, names) })
}

func WriteCSV(out io.Writer, entries []timer.TimeEntry, names store.Names) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, e := range entries {
		endStr := ""
		if e.EndTime != nil {
			endStr = e.EndTime.Local().Format(time.RFC3339)
		}
		amount := ""
		if e.WorkAmount != nil {
			amount = strconv.FormatFloat(*e.WorkAmount, 'f', -1, 64)
		}

		row := []string{
			e.ID,
			e.UserID,
			lookup(names.WorkTypes, e.WorkTypeID),
			lookup(names.Locations, e.LocationID),
			e.StartTime.Local().Format(time.RFC3339),
			endStr,
			fmt.Sprintf("%d", e.Duration),
			timer.FormatDuration(e.Duration),
			fmt.Sprintf("%d", e.PausedTime),
			amount,
			names.Units[e.WorkTypeID],
			string(e.Status),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func lookup(m map[string]string, id string) string {
	if name, ok := m[id]; ok {
		return name
	}
	return "Unknown"
}
