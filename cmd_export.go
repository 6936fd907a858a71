package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/export"
	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time entries as CSV, JSON or iCalendar",
	Example: "  teamclock export --format csv --from \"last monday\" -o week.csv\n" +
		"  teamclock export --format ics --from 2026-03-01 --to 2026-04-01",
	Args: cobra.NoArgs,
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("output")

		f, err := entryRange(cmd, time.Now())
		if err != nil {
			return err
		}
		f.TeamID = rt.cfg.User.TeamID
		f.UserID = rt.cfg.User.ID
		if all, _ := cmd.Flags().GetBool("all-members"); all {
			if err := rt.store.RequireAdmin(ctx, f.TeamID, rt.cfg.User.ID); err != nil {
				return err
			}
			f.UserID = ""
		}

		entries, err := rt.store.QueryEntries(ctx, f)
		if err != nil {
			return err
		}
		names, err := rt.store.LoadNames(ctx, f.TeamID)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer file.Close()
			w = file
		}

		switch strings.ToLower(format) {
		case "csv":
			err = export.WriteCSV(w, entries, names)
		case "json":
			err = export.WriteJSON(w, entries, names, time.Now())
		case "ics", "ical":
			err = export.WriteICS(w, entries, names, time.Now())
		default:
			return fmt.Errorf("unknown format %q (csv, json, ics)", format)
		}
		if err != nil {
			return err
		}
		if w != os.Stdout {
			fmt.Fprintf(os.Stderr, "Exported %s to %s\n", plural(len(entries), "entry", "entries"), out)
		}
		return nil
	}),
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Daily totals per work type",
	Args:  cobra.NoArgs,
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		now := time.Now()
		f, err := entryRange(cmd, now)
		if err != nil {
			return err
		}
		sf := store.SummaryFilter{TeamID: rt.cfg.User.TeamID, UserID: rt.cfg.User.ID, To: now.Add(time.Second)}
		if f.From != nil {
			sf.From = *f.From
		} else {
			sf.From = now.AddDate(0, 0, -7)
		}
		if f.To != nil {
			sf.To = *f.To
		}
		if all, _ := cmd.Flags().GetBool("all-members"); all {
			sf.UserID = ""
		}

		rows, err := rt.store.GetDailySummary(ctx, sf)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No completed time in this period.")
			return nil
		}
		var total int64
		for _, r := range rows {
			amount := ""
			if r.TotalAmount > 0 {
				amount = humanize.FormatFloat("#,###.##", r.TotalAmount) + " " + r.Unit
			}
			fmt.Printf("  %s  %-20s %10s  %-14s %s\n",
				r.Date, r.WorkTypeName, timer.FormatDuration(r.TotalSeconds), amount,
				plural(r.EntryCount, "entry", "entries"))
			total += r.TotalSeconds
		}
		fmt.Printf("Total: %s\n", timer.FormatDuration(total))
		return nil
	}),
}

// entryRange reads --from and --to. A bare date for --to includes that day.
func entryRange(cmd *cobra.Command, now time.Time) (timer.EntryFilter, error) {
	var f timer.EntryFilter
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := export.ParseWhen(s, now)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := export.ParseWhen(s, now)
		if err != nil {
			return f, err
		}
		if _, err := time.Parse("2006-01-02", s); err == nil {
			t = t.AddDate(0, 0, 1)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, fmt.Errorf("--from must be before --to: %w", timer.ErrInvalidInput)
	}
	return f, nil
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, reportCmd} {
		c.Flags().String("from", "", "start date: YYYY-MM-DD, RFC3339 or e.g. \"last monday\"")
		c.Flags().String("to", "", "end date, inclusive for YYYY-MM-DD")
		c.Flags().Bool("all-members", false, "include every team member")
	}
	exportCmd.Flags().String("format", "csv", "csv, json or ics")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}
