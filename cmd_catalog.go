package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workTypeCmd = &cobra.Command{
	Use:     "worktype",
	Aliases: []string{"wt"},
	Short:   "Manage the team's work types (admin)",
}

var workTypeAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a work type",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		if err := rt.store.RequireAdmin(ctx, teamID, rt.cfg.User.ID); err != nil {
			return err
		}
		unit, _ := cmd.Flags().GetString("unit")
		color, _ := cmd.Flags().GetString("color")
		wt, err := rt.store.CreateWorkType(ctx, teamID, args[0], unit, color)
		if err != nil {
			return err
		}
		fmt.Printf("Added work type %s (%s)\n", wt.Name, wt.ID)
		return nil
	}),
}

var workTypeArchiveCmd = &cobra.Command{
	Use:   "archive <work-type>",
	Short: "Archive a work type",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		if err := rt.store.RequireAdmin(ctx, teamID, rt.cfg.User.ID); err != nil {
			return err
		}
		wt, err := resolveWorkType(ctx, rt.store, teamID, args[0])
		if err != nil {
			return err
		}
		if err := rt.store.ArchiveWorkType(ctx, wt.ID); err != nil {
			return err
		}
		fmt.Printf("Archived work type %s\n", wt.Name)
		return nil
	}),
}

var locationCmd = &cobra.Command{
	Use:     "location",
	Aliases: []string{"loc"},
	Short:   "Manage the team's locations (admin)",
}

var locationAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a location",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		if err := rt.store.RequireAdmin(ctx, teamID, rt.cfg.User.ID); err != nil {
			return err
		}
		loc, err := rt.store.CreateLocation(ctx, teamID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Added location %s (%s)\n", loc.Name, loc.ID)
		return nil
	}),
}

var locationArchiveCmd = &cobra.Command{
	Use:   "archive <location>",
	Short: "Archive a location",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		if err := rt.store.RequireAdmin(ctx, teamID, rt.cfg.User.ID); err != nil {
			return err
		}
		loc, err := resolveLocation(ctx, rt.store, teamID, args[0])
		if err != nil {
			return err
		}
		if err := rt.store.ArchiveLocation(ctx, loc.ID); err != nil {
			return err
		}
		fmt.Printf("Archived location %s\n", loc.Name)
		return nil
	}),
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the team's work types and locations",
	Args:  cobra.NoArgs,
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teamID := rt.cfg.User.TeamID
		workTypes, err := rt.store.ListWorkTypes(ctx, teamID, false)
		if err != nil {
			return err
		}
		locations, err := rt.store.ListLocations(ctx, teamID, false)
		if err != nil {
			return err
		}

		fmt.Println("Work types:")
		if len(workTypes) == 0 {
			fmt.Println("  (none)")
		}
		for _, wt := range workTypes {
			fmt.Printf("  %s  %-24s %s\n", wt.ID, wt.Name, wt.Unit)
		}
		fmt.Println("Locations:")
		if len(locations) == 0 {
			fmt.Println("  (none)")
		}
		for _, l := range locations {
			fmt.Printf("  %s  %s\n", l.ID, l.Name)
		}
		return nil
	}),
}

func init() {
	workTypeAddCmd.Flags().String("unit", "", "what the work amount counts, e.g. m² or pieces")
	workTypeAddCmd.Flags().String("color", "", "hex color used in reports")
	workTypeCmd.AddCommand(workTypeAddCmd, workTypeArchiveCmd)
	locationCmd.AddCommand(locationAddCmd, locationArchiveCmd)
}
