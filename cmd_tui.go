package main

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/metrics"
	"github.com/sadopc/teamclock/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the full-screen dashboard",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.RunE = runTUI
}

var runTUI = withRuntime(openOpts{needUser: true, needTeam: true, restore: true, logFile: true},
	func(cmd *cobra.Command, args []string, rt *runtime) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()

		background := []func(context.Context) error{
			func(ctx context.Context) error { return rt.machine.Follow(ctx, rt.watcher) },
			func(ctx context.Context) error { return rt.machine.RunResync(ctx, rt.cfg.ResyncInterval()) },
		}
		if addr := rt.cfg.Metrics.Addr; addr != "" {
			background = append(background, func(ctx context.Context) error {
				return metrics.Serve(ctx, addr, rt.registry, rt.logger)
			})
		}
		for _, fn := range background {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(ctx); err != nil {
					rt.logger.Error("Background task failed", "error", err)
				}
			}()
		}

		rt.remindPending(ctx)

		app := tui.NewApp(ctx, rt.store, rt.machine, rt.queue)
		p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		return nil
	})
