package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAlreadyMember  = errors.New("already a team member")
	ErrRequestPending = errors.New("join request already pending")
	ErrRequestDecided = errors.New("join request already decided")
)

func (s *Store) CreateJoinRequest(ctx context.Context, teamID, userID, message string) (*JoinRequest, error) {
	role, err := s.MemberRole(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if role != "" {
		return nil, ErrAlreadyMember
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM join_requests WHERE team_id = ? AND user_id = ? AND status = ?`,
		teamID, userID, RequestPending,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("check join requests: %w", err)
	}
	if n > 0 {
		return nil, ErrRequestPending
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO join_requests (id, team_id, user_id, message, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, teamID, userID, message, RequestPending, s.stamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("create join request: %w", err)
	}
	return s.GetJoinRequest(ctx, id)
}

func (s *Store) GetJoinRequest(ctx context.Context, id string) (*JoinRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, user_id, message, status, created_at, decided_at, decided_by
		 FROM join_requests WHERE id = ?`, id,
	)
	r, err := scanJoinRequest(row)
	if err != nil {
		return nil, fmt.Errorf("get join request %s: %w", id, err)
	}
	return r, nil
}

// ListJoinRequests lists a team's requests, oldest first. An empty status
// lists all of them.
func (s *Store) ListJoinRequests(ctx context.Context, teamID, status string) ([]JoinRequest, error) {
	query := `SELECT id, team_id, user_id, message, status, created_at, decided_at, decided_by
		FROM join_requests WHERE team_id = ?`
	args := []any{teamID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	defer rows.Close()

	var out []JoinRequest
	for rows.Next() {
		r, err := scanJoinRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ApproveJoinRequest marks the request approved and adds the requester as a
// member. adminID must administer the team.
func (s *Store) ApproveJoinRequest(ctx context.Context, id, adminID string) error {
	return s.decideJoinRequest(ctx, id, adminID, RequestApproved)
}

func (s *Store) RejectJoinRequest(ctx context.Context, id, adminID string) error {
	return s.decideJoinRequest(ctx, id, adminID, RequestRejected)
}

func (s *Store) decideJoinRequest(ctx context.Context, id, adminID, status string) error {
	r, err := s.GetJoinRequest(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != RequestPending {
		return ErrRequestDecided
	}
	if err := s.RequireAdmin(ctx, r.TeamID, adminID); err != nil {
		return err
	}

	now := s.stamp()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE join_requests SET status = ?, decided_at = ?, decided_by = ? WHERE id = ?`,
		status, now, adminID, id,
	); err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	if status == RequestApproved {
		if err := addMember(ctx, tx, r.TeamID, r.UserID, RoleMember, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanJoinRequest(r rowScanner) (*JoinRequest, error) {
	jr := &JoinRequest{}
	var createdAt string
	var decidedAt sql.NullString
	if err := r.Scan(&jr.ID, &jr.TeamID, &jr.UserID, &jr.Message, &jr.Status, &createdAt, &decidedAt, &jr.DecidedBy); err != nil {
		return nil, err
	}
	jr.CreatedAt = parseTime(createdAt)
	jr.DecidedAt = parseNullTime(decidedAt)
	return jr, nil
}
