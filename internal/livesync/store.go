package livesync

import (
	"context"
	"log/slog"

	"github.com/sadopc/teamclock/internal/timer"
)

type publisher interface {
	Publish(ctx context.Context, e *timer.TimeEntry) error
	Remove(ctx context.Context, id string) error
}

// Store wraps a timer.Store and mirrors every successful write to the live
// channel. Mirror failures are logged and never fail the write; the resync
// loop republishes running entries.
type Store struct {
	timer.Store
	mirror publisher
	logger *slog.Logger
}

func NewStore(inner timer.Store, mirror publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, mirror: mirror, logger: logger}
}

func (s *Store) CreateEntry(ctx context.Context, e *timer.TimeEntry) (string, error) {
	id, err := s.Store.CreateEntry(ctx, e)
	if err != nil {
		return "", err
	}
	doc := e.Clone()
	doc.ID = id
	s.publish(ctx, doc)
	return id, nil
}

func (s *Store) UpdateEntry(ctx context.Context, e *timer.TimeEntry) error {
	if err := s.Store.UpdateEntry(ctx, e); err != nil {
		return err
	}
	s.publish(ctx, e)
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if err := s.Store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	if err := s.mirror.Remove(ctx, id); err != nil {
		s.logger.Warn("Failed to mirror entry delete", "entry_id", id, "error", err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, e *timer.TimeEntry) {
	if err := s.mirror.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to mirror entry", "entry_id", e.ID, "error", err)
	}
}
