package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const deviceIDKey = "device_id"

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetAllSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// DeviceID returns the identifier this installation stamps on its writes,
// generating and saving one on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	id, err := s.GetSetting(ctx, deviceIDKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, deviceIDKey, id,
	); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	// Another process may have won the insert.
	return s.GetSetting(ctx, deviceIDKey)
}

// SessionDeviceID returns a writer id unique to one process: the installation
// id plus a random suffix. Processes sharing a database file must not mistake
// each other's writes for their own echoes.
func (s *Store) SessionDeviceID(ctx context.Context) (string, error) {
	install, err := s.DeviceID(ctx)
	if err != nil {
		return "", err
	}
	return install + "/" + uuid.NewString()[:8], nil
}
