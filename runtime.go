package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sadopc/teamclock/internal/config"
	"github.com/sadopc/teamclock/internal/livesync"
	"github.com/sadopc/teamclock/internal/metrics"
	"github.com/sadopc/teamclock/internal/notify"
	"github.com/sadopc/teamclock/internal/store"
	"github.com/sadopc/teamclock/internal/timer"
)

// runtime holds everything a command needs. machine and queue are only set
// when a team is selected.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	logFile  *os.File
	store    *store.Store
	deviceID string

	mirror   *livesync.Mirror
	registry *prometheus.Registry
	notifier *notify.Notifier

	machine *timer.Machine
	queue   *timer.PendingQueue
	watcher timer.Watcher
}

type openOpts struct {
	needUser bool
	needTeam bool
	// restore rehydrates the machine and reports stale timers it closed.
	restore bool
	// logFile sends logs to the config directory instead of stderr, for
	// full-screen use.
	logFile bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if userOverride != "" {
		cfg.User.ID = userOverride
	}
	if teamOverride != "" {
		cfg.User.TeamID = teamOverride
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

func openLogFile() (*os.File, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	return os.OpenFile(filepath.Join(dir, "teamclock.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func openRuntime(ctx context.Context, opts openOpts) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.needTeam {
		if err := cfg.RequireUser(); err != nil {
			return nil, err
		}
	} else if opts.needUser && cfg.User.ID == "" {
		return nil, errors.New("user.id must be set (config file, TEAMCLOCK_USER or --user)")
	}
	dbPath := cfg.Database.Path
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}

	var logOut io.Writer = os.Stderr
	var logFile *os.File
	if opts.logFile {
		if logFile, err = openLogFile(); err != nil {
			return nil, err
		}
		logOut = logFile
	}
	logger := newLogger(cfg, logOut)

	s, err := store.New(dbPath)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, logFile: logFile, store: s, registry: prometheus.NewRegistry()}

	if rt.deviceID, err = s.SessionDeviceID(ctx); err != nil {
		rt.close()
		return nil, err
	}
	if !opts.needTeam {
		return rt, nil
	}

	if err := s.RequireMember(ctx, cfg.User.TeamID, cfg.User.ID); err != nil {
		rt.close()
		return nil, err
	}

	var entries timer.Store = s
	rt.watcher = s
	if cfg.Sync.NATSURL != "" {
		rt.mirror, err = livesync.Connect(ctx, cfg.Sync.NATSURL, cfg.Sync.Bucket, logger)
		if err != nil {
			rt.close()
			return nil, err
		}
		entries = livesync.NewStore(s, rt.mirror, logger)
		rt.watcher = rt.mirror
	}

	machineOpts := []timer.Option{
		timer.WithLogger(logger),
		timer.WithObserver(metrics.NewCollector(rt.registry)),
	}
	if cfg.Notifications.Enabled {
		rt.notifier = notify.New(logger)
		machineOpts = append(machineOpts, timer.WithObserver(rt.notifier))
	}

	sess := timer.Session{UserID: cfg.User.ID, TeamID: cfg.User.TeamID, DeviceID: rt.deviceID}
	rt.machine, err = timer.NewMachine(entries, sess, machineOpts...)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.queue = timer.NewPendingQueue(entries, rt.deviceID, logger)

	if opts.restore {
		restored, err := rt.machine.Restore(ctx)
		if err != nil {
			rt.close()
			return nil, err
		}
		if e := restored.AutoClosed; e != nil {
			fmt.Printf("Closed a timer left running since %s (%s). It is waiting for its work amount.\n",
				humanize.Time(e.StartTime), timer.FormatDuration(e.Duration))
		}
	}
	return rt, nil
}

func (rt *runtime) close() {
	if rt.mirror != nil {
		if err := rt.mirror.Close(); err != nil {
			rt.logger.Warn("Closing live sync", "error", err)
		}
	}
	rt.store.Close()
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}

// remindPending notifies when stopped entries still lack a work amount.
func (rt *runtime) remindPending(ctx context.Context) {
	if rt.notifier == nil || rt.queue == nil {
		return
	}
	if v, _ := rt.store.GetSetting(ctx, "pending_reminder"); v == "false" {
		return
	}
	pending, err := rt.queue.List(ctx, rt.cfg.User.ID, rt.cfg.User.TeamID)
	if err != nil {
		rt.logger.Warn("Listing pending entries", "error", err)
		return
	}
	rt.notifier.PendingReminder(len(pending))
}

// withRuntime wraps a command body that needs an open runtime.
func withRuntime(opts openOpts, fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer rt.close()
		return fn(cmd, args, rt)
	}
}

// resolveWorkType accepts a work type id or a case-insensitive name.
func resolveWorkType(ctx context.Context, s *store.Store, teamID, ref string) (*store.WorkType, error) {
	list, err := s.ListWorkTypes(ctx, teamID, false)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == ref || strings.EqualFold(list[i].Name, ref) {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("work type %q: %w", ref, timer.ErrNotFound)
}

// resolveLocation accepts a location id or a case-insensitive name.
func resolveLocation(ctx context.Context, s *store.Store, teamID, ref string) (*store.Location, error) {
	list, err := s.ListLocations(ctx, teamID, false)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == ref || strings.EqualFold(list[i].Name, ref) {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("location %q: %w", ref, timer.ErrNotFound)
}
