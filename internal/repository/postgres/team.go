package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"matrix-commission-backend/internal/domain"
)

type teamRepository struct {
	db DBTX
}

func (r *teamRepository) IsMember(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM team_members WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, err
}

func (r *teamRepository) GetFormingForUpdate(ctx context.Context, leaderID int64) (*domain.Team, error) {
	t := &domain.Team{}
	query := `SELECT id, leader_id, status, created_at FROM teams
	          WHERE leader_id = $1 AND status = 'forming' FOR UPDATE`
	err := r.db.QueryRowContext(ctx, query, leaderID).Scan(&t.ID, &t.LeaderID, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetFormingTeam", "leader %d has no forming team", leaderID)
	}
	if err != nil {
		return nil, err
	}

	members, err := queryIDs(ctx, r.db, `SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY joined_at, user_id`, t.ID)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return t, nil
}

func (r *teamRepository) Create(ctx context.Context, leaderID int64) (*domain.Team, error) {
	t := &domain.Team{LeaderID: leaderID, Status: domain.TeamStatusForming}
	query := `INSERT INTO teams (leader_id, status, created_at) VALUES ($1, 'forming', NOW()) RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, leaderID).Scan(&t.ID, &t.CreatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *teamRepository) AddMember(ctx context.Context, teamID, userID int64) (int, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, joined_at) VALUES ($1, $2, NOW())`, teamID, userID); err != nil {
		return 0, err
	}
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE team_id = $1`, teamID).Scan(&count)
	return count, err
}

func (r *teamRepository) Complete(ctx context.Context, teamID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE teams SET status = 'complete', completed_at = $2 WHERE id = $1 AND status = 'forming'`, teamID, at)
	return err
}
