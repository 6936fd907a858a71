package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/metrics"
	"github.com/sadopc/teamclock/internal/timer"
)

var timerOpts = openOpts{needUser: true, needTeam: true, restore: true}

var startCmd = &cobra.Command{
	Use:   "start <work-type> <location>",
	Short: "Start a timer for a work type at a location",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		wt, err := resolveWorkType(ctx, rt.store, teamID, args[0])
		if err != nil {
			return err
		}
		loc, err := resolveLocation(ctx, rt.store, teamID, args[1])
		if err != nil {
			return err
		}
		e, err := rt.machine.Start(ctx, wt.ID, loc.ID)
		if errors.Is(err, timer.ErrConflictingActiveTimer) {
			return fmt.Errorf("%w: stop or cancel it first", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Started %s at %s (%s)\n", wt.Name, loc.Name, e.ID)
		return nil
	}),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer",
	Args:  cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		e, err := rt.machine.Pause(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Paused at %s\n", timer.FormatDuration(e.Elapsed(time.Now())))
		return nil
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused timer",
	Args:  cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		e, err := rt.machine.Resume(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Resumed at %s\n", timer.FormatDuration(e.Elapsed(time.Now())))
		return nil
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer and record the work amount",
	Long: "Stop the running or paused timer. Pass --amount to complete the entry right away; " +
		"otherwise it waits in the pending list until an amount is recorded.",
	Args: cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		amount, _ := cmd.Flags().GetFloat64("amount")

		var e *timer.TimeEntry
		var err error
		if rt.machine.State() != timer.StateStopped {
			if e, err = rt.machine.Stop(ctx); err != nil {
				return err
			}
			fmt.Printf("Stopped after %s\n", timer.FormatDuration(e.Duration))
		} else {
			e = rt.machine.Current()
		}

		if !cmd.Flags().Changed("amount") {
			if _, err := rt.machine.Postpone(ctx); err != nil {
				return err
			}
			fmt.Printf("Entry %s is pending. Record the amount with: teamclock pending resolve %s <amount>\n", e.ID, e.ID)
			return nil
		}
		done, err := rt.machine.RecordWorkAmount(ctx, e.ID, amount)
		if err != nil {
			return err
		}
		names, _ := rt.store.LoadNames(ctx, rt.cfg.User.TeamID)
		fmt.Printf("Recorded %s %s\n", humanize.Ftoa(*done.WorkAmount), names.Units[done.WorkTypeID])
		return nil
	}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Discard the running timer",
	Args:  cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		if err := rt.machine.Cancel(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Timer cancelled.")
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current timer and today's total",
	Args:  cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		if err := printStatus(ctx, rt); err != nil {
			return err
		}
		rt.remindPending(ctx)
		if f, _ := cmd.Flags().GetBool("follow"); f {
			return followTimer(ctx, rt)
		}
		return nil
	}),
}

func init() {
	stopCmd.Flags().Float64("amount", 0, "work amount to record")
	statusCmd.Flags().BoolP("follow", "f", false, "keep running and track changes from other devices")
}

func printStatus(ctx context.Context, rt *runtime) error {
	names, err := rt.store.LoadNames(ctx, rt.cfg.User.TeamID)
	if err != nil {
		return err
	}
	cur := rt.machine.Current()
	switch cur.State() {
	case timer.StateIdle:
		fmt.Println("No timer running.")
	case timer.StateStopped:
		fmt.Printf("Stopped: %s at %s, %s. Waiting for the work amount.\n",
			names.WorkTypes[cur.WorkTypeID], names.Locations[cur.LocationID], timer.FormatDuration(cur.Duration))
	default:
		fmt.Printf("%s: %s at %s, %s (started %s)\n",
			cur.State(), names.WorkTypes[cur.WorkTypeID], names.Locations[cur.LocationID],
			timer.FormatDuration(cur.Elapsed(time.Now())), humanize.Time(cur.StartTime))
	}

	total, err := rt.store.GetTodayTotal(ctx, rt.cfg.User.TeamID, rt.cfg.User.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Today: %s\n", timer.FormatDuration(total))

	pending, err := rt.queue.List(ctx, rt.cfg.User.ID, rt.cfg.User.TeamID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		fmt.Printf("%s awaiting a work amount.\n", plural(len(pending), "entry", "entries"))
	}
	return nil
}

// followTimer keeps the machine attached to its document, pushes running state
// every resync interval, and prints elapsed time until ctx is done.
func followTimer(ctx context.Context, rt *runtime) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	run("follow", func(ctx context.Context) error { return rt.machine.Follow(ctx, rt.watcher) })
	run("resync", func(ctx context.Context) error { return rt.machine.RunResync(ctx, rt.cfg.ResyncInterval()) })
	if addr := rt.cfg.Metrics.Addr; addr != "" {
		run("metrics", func(ctx context.Context) error { return metrics.Serve(ctx, addr, rt.registry, rt.logger) })
	}

	lastID := ""
	ticker := timer.NewTicker(rt.machine, rt.cfg.TickPeriod(), func(elapsed int64) {
		fmt.Printf("\r%s ", timer.FormatDuration(elapsed))
	})
	run("ticker", func(ctx context.Context) error {
		t := time.NewTicker(rt.cfg.TickPeriod())
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-t.C:
				cur := rt.machine.Current()
				id := ""
				if cur != nil {
					id = cur.ID
				}
				if id != lastID {
					lastID = id
					fmt.Println()
					if err := printStatus(ctx, rt); err != nil {
						rt.logger.Warn("Printing status", "error", err)
					}
				}
				ticker.Tick(now)
			}
		}
	})

	wg.Wait()
	fmt.Println()
	close(errs)
	return <-errs
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

// parseAmount parses a positive work amount.
func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("work amount %q must be a positive number: %w", s, timer.ErrInvalidInput)
	}
	return v, nil
}
