package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/timer"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Stopped entries still waiting for a work amount",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending entries",
	Args:  cobra.NoArgs,
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		entries, err := rt.queue.List(ctx, rt.cfg.User.ID, rt.cfg.User.TeamID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}
		names, err := rt.store.LoadNames(ctx, rt.cfg.User.TeamID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  %s  %-14s %-18s %-16s %s\n",
				e.ID,
				humanize.Time(e.StartTime),
				names.WorkTypes[e.WorkTypeID],
				names.Locations[e.LocationID],
				timer.FormatDuration(e.Duration))
		}
		return nil
	}),
}

var pendingResolveCmd = &cobra.Command{
	Use:   "resolve <entry-id> <amount>",
	Short: "Record the work amount of a pending entry",
	Args:  cobra.ExactArgs(2),
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		if _, err := rt.machine.RecordWorkAmount(cmd.Context(), args[0], amount); err != nil {
			return err
		}
		fmt.Println("Entry completed.")
		return nil
	}),
}

var pendingPurgeCmd = &cobra.Command{
	Use:   "purge <user-id>",
	Short: "Force-resolve a member's pending entries (admin)",
	Long: "Resolve every stopped pending entry of a team member. By default entries are completed " +
		"with an amount of 0 and keep their time; --delete removes them. The team's purge_mode " +
		"setting picks the default.",
	Args: cobra.ExactArgs(1),
	RunE: withRuntime(timerOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		if err := rt.store.RequireAdmin(ctx, teamID, rt.cfg.User.ID); err != nil {
			return err
		}

		mode := timer.PurgeZeroFill
		if v, _ := rt.store.GetSetting(ctx, "purge_mode"); v == "delete" {
			mode = timer.PurgeDelete
		}
		if cmd.Flags().Changed("delete") {
			if del, _ := cmd.Flags().GetBool("delete"); del {
				mode = timer.PurgeDelete
			} else {
				mode = timer.PurgeZeroFill
			}
		}

		n, err := rt.queue.Purge(ctx, args[0], teamID, mode)
		if err != nil {
			return err
		}
		verb := "Completed"
		if mode == timer.PurgeDelete {
			verb = "Deleted"
		}
		fmt.Printf("%s %s.\n", verb, plural(n, "entry", "entries"))
		return nil
	}),
}

func init() {
	pendingPurgeCmd.Flags().Bool("delete", false, "delete entries instead of completing them with 0")
	pendingCmd.AddCommand(pendingListCmd, pendingResolveCmd, pendingPurgeCmd)
}
