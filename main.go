package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "teamclock",
	Short: "Team time tracking with work amounts",
	Long: "teamclock tracks working time per work type and location, asks for the amount of work done " +
		"when a timer stops, and keeps running timers in sync across a user's devices.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath   string
	userOverride string
	teamOverride string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/teamclock/config.toml)")
	rootCmd.PersistentFlags().StringVar(&userOverride, "user", "", "user id, overrides config")
	rootCmd.PersistentFlags().StringVar(&teamOverride, "team", "", "team id, overrides config")

	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, stopCmd, cancelCmd, statusCmd)
	rootCmd.AddCommand(pendingCmd, teamCmd, workTypeCmd, locationCmd, catalogCmd)
	rootCmd.AddCommand(reportCmd, exportCmd, tuiCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
