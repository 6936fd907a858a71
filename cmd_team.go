package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/config"
	"github.com/sadopc/teamclock/internal/store"
)

var (
	userOpts = openOpts{needUser: true}
	teamOpts = openOpts{needUser: true, needTeam: true}
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Create, join and administer teams",
}

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team with you as its admin",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		team, err := rt.store.CreateTeam(cmd.Context(), args[0], rt.cfg.User.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Created team %s (%s)\n", team.Name, team.ID)
		if rt.cfg.User.TeamID == "" {
			fmt.Printf("Select it with: teamclock team use %s\n", team.ID)
		}
		return nil
	}),
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your teams",
	Args:  cobra.NoArgs,
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		teams, err := rt.store.ListTeams(ctx, rt.cfg.User.ID)
		if err != nil {
			return err
		}
		if len(teams) == 0 {
			fmt.Println("You are not in any team yet.")
			return nil
		}
		for _, t := range teams {
			marker := " "
			if t.ID == rt.cfg.User.TeamID {
				marker = "*"
			}
			role, _ := rt.store.MemberRole(ctx, t.ID, rt.cfg.User.ID)
			fmt.Printf("%s %s  %-24s %s\n", marker, t.ID, t.Name, role)
		}
		return nil
	}),
}

var teamUseCmd = &cobra.Command{
	Use:   "use <team-id>",
	Short: "Make a team the default in your config file",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		if err := rt.store.RequireMember(cmd.Context(), args[0], rt.cfg.User.ID); err != nil {
			return err
		}
		rt.cfg.User.TeamID = args[0]
		if err := config.Save(rt.cfg, configPath); err != nil {
			return err
		}
		fmt.Printf("Now tracking time for team %s\n", args[0])
		return nil
	}),
}

var teamMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List members of the current team",
	Args:  cobra.NoArgs,
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		members, err := rt.store.ListMembers(cmd.Context(), rt.cfg.User.TeamID)
		if err != nil {
			return err
		}
		for _, m := range members {
			fmt.Printf("  %-24s %-7s joined %s\n", m.UserID, m.Role, humanize.Time(m.CreatedAt))
		}
		return nil
	}),
}

var teamJoinCmd = &cobra.Command{
	Use:   "join <team-id>",
	Short: "Ask to join a team",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		msg, _ := cmd.Flags().GetString("message")
		req, err := rt.store.CreateJoinRequest(cmd.Context(), args[0], rt.cfg.User.ID, msg)
		if err != nil {
			return err
		}
		fmt.Printf("Join request %s sent. A team admin has to approve it.\n", req.ID)
		return nil
	}),
}

var teamRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List pending join requests of the current team",
	Args:  cobra.NoArgs,
	RunE: withRuntime(teamOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx := cmd.Context()
		if err := rt.store.RequireAdmin(ctx, rt.cfg.User.TeamID, rt.cfg.User.ID); err != nil {
			return err
		}
		reqs, err := rt.store.ListJoinRequests(ctx, rt.cfg.User.TeamID, store.RequestPending)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			fmt.Println("No pending requests.")
			return nil
		}
		for _, r := range reqs {
			fmt.Printf("  %s  %-20s %-14s %s\n", r.ID, r.UserID, humanize.Time(r.CreatedAt), r.Message)
		}
		return nil
	}),
}

var teamApproveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a join request (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		if err := rt.store.ApproveJoinRequest(cmd.Context(), args[0], rt.cfg.User.ID); err != nil {
			return err
		}
		fmt.Println("Request approved.")
		return nil
	}),
}

var teamRejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a join request (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(userOpts, func(cmd *cobra.Command, args []string, rt *runtime) error {
		if err := rt.store.RejectJoinRequest(cmd.Context(), args[0], rt.cfg.User.ID); err != nil {
			return err
		}
		fmt.Println("Request rejected.")
		return nil
	}),
}

func init() {
	teamJoinCmd.Flags().StringP("message", "m", "", "note for the team admins")
	teamCmd.AddCommand(teamCreateCmd, teamListCmd, teamUseCmd, teamMembersCmd,
		teamJoinCmd, teamRequestsCmd, teamApproveCmd, teamRejectCmd)
}
