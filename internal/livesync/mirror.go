// Package livesync mirrors time entries into a NATS JetStream key-value
// bucket so every device of a user sees writes made elsewhere.
package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sadopc/teamclock/internal/timer"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "TEAMCLOCK_ENTRIES"

const keyPrefix = "entries."

// keyValue is the part of jetstream.KeyValue the mirror needs.
type keyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error)
}

// Mirror publishes entry documents to the bucket and watches them. It
// implements timer.Watcher.
type Mirror struct {
	kv     keyValue
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect opens a NATS connection and creates or updates the KV bucket.
func Connect(ctx context.Context, url, bucket string, logger *slog.Logger) (*Mirror, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	nc, err := nats.Connect(url, nats.Name("teamclock"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Live time entry documents",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	m := newMirror(kv, logger)
	m.conn = nc
	m.logger.Debug("Live sync connected", "url", url, "bucket", bucket)
	return m, nil
}

func newMirror(kv keyValue, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{kv: kv, logger: logger}
}

// Close drains the NATS connection.
func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Drain()
}

func entryKey(id string) string { return keyPrefix + id }

// Publish writes the entry document under its id.
func (m *Mirror) Publish(ctx context.Context, e *timer.TimeEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := m.kv.Put(ctx, entryKey(e.ID), data); err != nil {
		return fmt.Errorf("publish entry %s: %w", e.ID, err)
	}
	return nil
}

// Remove deletes the entry document. Removing a missing key is not an error.
func (m *Mirror) Remove(ctx context.Context, id string) error {
	err := m.kv.Delete(ctx, entryKey(id))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("remove entry %s: %w", id, err)
	}
	return nil
}

// WatchEntry calls fn for every later put of the entry and with nil when it
// is deleted or purged. Values already in the bucket are not replayed.
func (m *Mirror) WatchEntry(ctx context.Context, id string, fn func(*timer.TimeEntry)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	watcher, err := m.kv.Watch(ctx, entryKey(id), jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch entry %s: %w", id, err)
	}

	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case kve, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if kve == nil {
					continue
				}
				switch kve.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					fn(nil)
				case jetstream.KeyValuePut:
					var e timer.TimeEntry
					if err := json.Unmarshal(kve.Value(), &e); err != nil {
						m.logger.Warn("Failed to decode entry from KV", "key", kve.Key(), "error", err)
						continue
					}
					fn(&e)
				}
			}
		}
	}()
	return cancel, nil
}
