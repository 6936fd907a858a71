package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Entries    []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	WorkType    string   `json:"work_type"`
	WorkTypeID  string   `json:"work_type_id"`
	Location    string   `json:"location"`
	LocationID  string   `json:"location_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time,omitempty"`
	DurationSec int64    `json:"duration_seconds"`
	Duration    string   `json:"duration"`
	PausedSec   int64    `json:"paused_seconds"`
	WorkAmount  *float64 `json:"work_amount,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Status      string   `json:"status"`
}

func ToJSON(entries []timer.TimeEntry, names store.Names, path string) error {
	return toFile(path, "json", func(w io.Writer) error { return WriteJSON(w, entries, names, time.Now()) })
}

func WriteJSON(w io.Writer, entries []timer.TimeEntry, names store.Names, now time.Time) error {
	export := jsonExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(entries),
		Entries:    []jsonEntry{},
	}

	for _, e := range entries {
		endStr := ""
		if e.EndTime != nil {
			endStr = e.EndTime.Local().Format(time.RFC3339)
		}

		export.Entries = append(export.Entries, jsonEntry{
			ID:          e.ID,
			UserID:      e.UserID,
			WorkType:    lookup(names.WorkTypes, e.WorkTypeID),
			WorkTypeID:  e.WorkTypeID,
			Location:    lookup(names.Locations, e.LocationID),
			LocationID:  e.LocationID,
			StartTime:   e.StartTime.Local().Format(time.RFC3339),
			EndTime:     endStr,
			DurationSec: e.Duration,
			Duration:    timer.FormatDuration(e.Duration),
			PausedSec:   e.PausedTime,
			WorkAmount:  e.WorkAmount,
			Unit:        names.Units[e.WorkTypeID],
			Status:      string(e.Status),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func toFile(path, kind string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s file: %w", kind, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s file: %w", kind, err)
	}
	return f.Close()
}
