package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/teamclock/internal/timer"
)

const entryColumns = `id, user_id, team_id, work_type_id, location_id, start_time, end_time,
	paused_time, last_pause_time, is_running, duration, work_amount, status, device_id,
	created_at, last_update`

// CreateEntry inserts e with a fresh id and returns the id. CreatedAt and
// LastUpdate are set by the store.
func (s *Store) CreateEntry(ctx context.Context, e *timer.TimeEntry) (string, error) {
	id := uuid.NewString()
	now := s.now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO time_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.TeamID, e.WorkTypeID, e.LocationID,
		formatTime(e.StartTime), formatTimePtr(e.EndTime),
		e.PausedTime, formatTimePtr(e.LastPauseTime), boolInt(e.IsRunning), e.Duration,
		floatPtr(e.WorkAmount), string(e.Status), e.DeviceID,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("create entry: %w", err)
	}
	e.CreatedAt = now
	e.LastUpdate = now
	return id, nil
}

// UpdateEntry overwrites the stored document with e. It fails with
// timer.ErrNotFound when the entry no longer exists.
func (s *Store) UpdateEntry(ctx context.Context, e *timer.TimeEntry) error {
	now := s.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_entries SET
			user_id = ?, team_id = ?, work_type_id = ?, location_id = ?,
			start_time = ?, end_time = ?, paused_time = ?, last_pause_time = ?,
			is_running = ?, duration = ?, work_amount = ?, status = ?, device_id = ?,
			last_update = ?
		 WHERE id = ?`,
		e.UserID, e.TeamID, e.WorkTypeID, e.LocationID,
		formatTime(e.StartTime), formatTimePtr(e.EndTime), e.PausedTime, formatTimePtr(e.LastPauseTime),
		boolInt(e.IsRunning), e.Duration, floatPtr(e.WorkAmount), string(e.Status), e.DeviceID,
		formatTime(now), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update entry %s: %w", e.ID, timer.ErrNotFound)
	}
	e.LastUpdate = now

	stored, err := s.GetEntry(ctx, e.ID)
	if err == nil && stored != nil {
		s.publish(e.ID, stored)
	}
	return nil
}

// GetEntry returns the entry with the given id, or nil when there is none.
func (s *Store) GetEntry(ctx context.Context, id string) (*timer.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// DeleteEntry removes the entry. Deleting a missing entry is not an error.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(id, nil)
	}
	return nil
}

// QueryEntries lists entries matching f, newest first.
func (s *Store) QueryEntries(ctx context.Context, f timer.EntryFilter) ([]timer.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	var args []any

	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, f.TeamID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.IsRunning != nil {
		query += ` AND is_running = ?`
		args = append(args, boolInt(*f.IsRunning))
	}
	if f.Open {
		query += ` AND end_time IS NULL`
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY start_time DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []timer.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(r rowScanner) (*timer.TimeEntry, error) {
	e := &timer.TimeEntry{}
	var startTime, createdAt, lastUpdate, status string
	var endTime, lastPause sql.NullString
	var amount sql.NullFloat64
	var running int

	err := r.Scan(&e.ID, &e.UserID, &e.TeamID, &e.WorkTypeID, &e.LocationID,
		&startTime, &endTime, &e.PausedTime, &lastPause, &running, &e.Duration,
		&amount, &status, &e.DeviceID, &createdAt, &lastUpdate)
	if err != nil {
		return nil, err
	}
	e.StartTime = parseTime(startTime)
	e.EndTime = parseNullTime(endTime)
	e.LastPauseTime = parseNullTime(lastPause)
	e.IsRunning = running != 0
	if amount.Valid {
		v := amount.Float64
		e.WorkAmount = &v
	}
	e.Status = timer.Status(status)
	e.CreatedAt = parseTime(createdAt)
	e.LastUpdate = parseTime(lastUpdate)
	return e, nil
}

// GetDailySummary aggregates stopped entries per day and work type.
func (s *Store) GetDailySummary(ctx context.Context, f SummaryFilter) ([]DailySummary, error) {
	query := `
		SELECT date(e.start_time) AS day, e.work_type_id,
		       COALESCE(w.name, e.work_type_id), COALESCE(w.color, ''), COALESCE(w.unit, ''),
		       COALESCE(SUM(e.duration), 0), COALESCE(SUM(e.work_amount), 0), COUNT(*)
		FROM time_entries e
		LEFT JOIN work_types w ON w.id = e.work_type_id
		WHERE e.end_time IS NOT NULL
		  AND e.start_time >= ? AND e.start_time < ?`
	args := []any{formatTime(f.From), formatTime(f.To)}
	if f.TeamID != "" {
		query += ` AND e.team_id = ?`
		args = append(args, f.TeamID)
	}
	if f.UserID != "" {
		query += ` AND e.user_id = ?`
		args = append(args, f.UserID)
	}
	query += ` GROUP BY day, e.work_type_id ORDER BY day, 3`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var ds DailySummary
		if err := rows.Scan(&ds.Date, &ds.WorkTypeID, &ds.WorkTypeName, &ds.WorkTypeColor, &ds.Unit,
			&ds.TotalSeconds, &ds.TotalAmount, &ds.EntryCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}

// GetTodayTotal sums the net seconds of the user's stopped entries that
// started today (UTC).
func (s *Store) GetTodayTotal(ctx context.Context, teamID, userID string) (int64, error) {
	today := s.now().UTC().Format("2006-01-02")
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(duration), 0)
		FROM time_entries
		WHERE date(start_time) = ? AND end_time IS NOT NULL
		  AND team_id = ? AND user_id = ?`, today, teamID, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("today total: %w", err)
	}
	return total.Int64, nil
}
