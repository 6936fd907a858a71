package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const defaultWorkTypeColor = "#6C63FF"

func (s *Store) CreateWorkType(ctx context.Context, teamID, name, unit, color string) (*WorkType, error) {
	if color == "" {
		color = defaultWorkTypeColor
	}
	id := uuid.NewString()
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_types (id, team_id, name, unit, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, teamID, name, unit, color, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work type: %w", err)
	}
	return s.GetWorkType(ctx, id)
}

func (s *Store) GetWorkType(ctx context.Context, id string) (*WorkType, error) {
	w := &WorkType{}
	var createdAt, updatedAt string
	var archived int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, unit, color, archived, created_at, updated_at FROM work_types WHERE id = ?`, id,
	).Scan(&w.ID, &w.TeamID, &w.Name, &w.Unit, &w.Color, &archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get work type %s: %w", id, err)
	}
	w.Archived = archived == 1
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	return w, nil
}

func (s *Store) ListWorkTypes(ctx context.Context, teamID string, includeArchived bool) ([]WorkType, error) {
	query := `SELECT id, team_id, name, unit, color, archived, created_at, updated_at FROM work_types WHERE team_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list work types: %w", err)
	}
	defer rows.Close()

	var types []WorkType
	for rows.Next() {
		var w WorkType
		var createdAt, updatedAt string
		var archived int
		if err := rows.Scan(&w.ID, &w.TeamID, &w.Name, &w.Unit, &w.Color, &archived, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		w.Archived = archived == 1
		w.CreatedAt = parseTime(createdAt)
		w.UpdatedAt = parseTime(updatedAt)
		types = append(types, w)
	}
	return types, rows.Err()
}

func (s *Store) ArchiveWorkType(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE work_types SET archived = 1, updated_at = ? WHERE id = ?`, s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("archive work type: %w", err)
	}
	return nil
}

func (s *Store) CreateLocation(ctx context.Context, teamID, name string) (*Location, error) {
	id := uuid.NewString()
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (id, team_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, teamID, name, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return s.GetLocation(ctx, id)
}

func (s *Store) GetLocation(ctx context.Context, id string) (*Location, error) {
	l := &Location{}
	var createdAt, updatedAt string
	var archived int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, archived, created_at, updated_at FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.TeamID, &l.Name, &archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get location %s: %w", id, err)
	}
	l.Archived = archived == 1
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

func (s *Store) ListLocations(ctx context.Context, teamID string, includeArchived bool) ([]Location, error) {
	query := `SELECT id, team_id, name, archived, created_at, updated_at FROM locations WHERE team_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		var createdAt, updatedAt string
		var archived int
		if err := rows.Scan(&l.ID, &l.TeamID, &l.Name, &archived, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		l.Archived = archived == 1
		l.CreatedAt = parseTime(createdAt)
		l.UpdatedAt = parseTime(updatedAt)
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *Store) ArchiveLocation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE locations SET archived = 1, updated_at = ? WHERE id = ?`, s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("archive location: %w", err)
	}
	return nil
}

// Names maps work type and location ids of a team to display names.
type Names struct {
	WorkTypes map[string]string
	Units     map[string]string
	Locations map[string]string
}

// LoadNames resolves the display names of a team's catalog, archived items
// included, so old entries still render.
func (s *Store) LoadNames(ctx context.Context, teamID string) (Names, error) {
	n := Names{
		WorkTypes: make(map[string]string),
		Units:     make(map[string]string),
		Locations: make(map[string]string),
	}
	types, err := s.ListWorkTypes(ctx, teamID, true)
	if err != nil {
		return n, err
	}
	for _, w := range types {
		n.WorkTypes[w.ID] = w.Name
		n.Units[w.ID] = w.Unit
	}
	locs, err := s.ListLocations(ctx, teamID, true)
	if err != nil {
		return n, err
	}
	for _, l := range locs {
		n.Locations[l.ID] = l.Name
	}
	return n, nil
}
