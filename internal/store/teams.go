package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotAdmin is returned when an admin-only action is attempted by a
// non-admin.
var ErrNotAdmin = errors.New("not a team admin")

var ErrNotMember = errors.New("not a team member")

// CreateTeam creates a team and makes ownerID its first admin.
func (s *Store) CreateTeam(ctx context.Context, name, ownerID string) (*Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || ownerID == "" {
		return nil, fmt.Errorf("create team: name and owner are required")
	}
	id := uuid.NewString()
	now := s.stamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert team: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		id, ownerID, RoleAdmin, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetTeam(ctx, id)
}

func (s *Store) GetTeam(ctx context.Context, id string) (*Team, error) {
	t := &Team{}
	var createdAt, updatedAt string
	var archived int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, archived, created_at, updated_at FROM teams WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get team %s: %w", id, err)
	}
	t.Archived = archived == 1
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// ListTeams lists active teams. With a userID only the teams that user
// belongs to are returned.
func (s *Store) ListTeams(ctx context.Context, userID string) ([]Team, error) {
	query := `SELECT t.id, t.name, t.archived, t.created_at, t.updated_at FROM teams t`
	var args []any
	if userID != "" {
		query += ` JOIN team_members m ON m.team_id = t.id AND m.user_id = ?`
		args = append(args, userID)
	}
	query += ` WHERE t.archived = 0 ORDER BY t.name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		var createdAt, updatedAt string
		var archived int
		if err := rows.Scan(&t.ID, &t.Name, &archived, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t.Archived = archived == 1
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (s *Store) RenameTeam(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE teams SET name = ?, updated_at = ? WHERE id = ?`, name, s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("rename team: %w", err)
	}
	return nil
}

func (s *Store) ArchiveTeam(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE teams SET archived = 1, updated_at = ? WHERE id = ?`, s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("archive team: %w", err)
	}
	return nil
}

// AddMember adds userID to the team, or changes the role of an existing
// member.
func (s *Store) AddMember(ctx context.Context, teamID, userID, role string) error {
	return addMember(ctx, s.db, teamID, userID, role, s.stamp())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addMember(ctx context.Context, db execer, teamID, userID, role, now string) error {
	if role != RoleAdmin && role != RoleMember {
		return fmt.Errorf("unknown role %q", role)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(team_id, user_id) DO UPDATE SET role = excluded.role`,
		teamID, userID, role, now,
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, user_id, role, created_at FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var createdAt string
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberRole returns the user's role in the team, or "" for non-members.
func (s *Store) MemberRole(ctx context.Context, teamID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("member role: %w", err)
	}
	return role, nil
}

func (s *Store) IsTeamAdmin(ctx context.Context, teamID, userID string) (bool, error) {
	role, err := s.MemberRole(ctx, teamID, userID)
	return role == RoleAdmin, err
}

// RequireAdmin returns ErrNotAdmin unless userID administers the team.
func (s *Store) RequireAdmin(ctx context.Context, teamID, userID string) error {
	ok, err := s.IsTeamAdmin(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s in team %s: %w", userID, teamID, ErrNotAdmin)
	}
	return nil
}

// RequireMember returns ErrNotMember unless userID belongs to the team.
func (s *Store) RequireMember(ctx context.Context, teamID, userID string) error {
	role, err := s.MemberRole(ctx, teamID, userID)
	if err != nil {
		return err
	}
	if role == "" {
		return fmt.Errorf("%s in team %s: %w", userID, teamID, ErrNotMember)
	}
	return nil
}
