package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"matrix-commission-backend/internal/domain"
)

const userColumns = `id, sponsor_id, referral_code, is_active, is_system, level, wallet_balance,
	monthly_purchase, is_eligible_repurchase, total_teams, activated_at, created_at, updated_at`

type userRepository struct {
	db DBTX
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var sponsorID sql.NullInt64
	var referralCode sql.NullString
	var activatedAt sql.NullTime
	err := row.Scan(&u.ID, &sponsorID, &referralCode, &u.IsActive, &u.IsSystem, &u.Level, &u.WalletBalance,
		&u.MonthlyPurchase, &u.IsEligibleRepurchase, &u.TotalTeams, &activatedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.SponsorID = nullInt64Ptr(sponsorID)
	if referralCode.Valid {
		u.ReferralCode = &referralCode.String
	}
	u.ActivatedAt = nullTimePtr(activatedAt)
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetUser", "user %d not found", id)
	}
	return u, err
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.User, error) {
	users := make(map[int64]*domain.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

func (r *userRepository) CreateSystemUser(ctx context.Context, referralCode string) (*domain.User, error) {
	query := `INSERT INTO users (referral_code, is_active, is_system, activated_at, created_at, updated_at)
	          VALUES ($1, TRUE, TRUE, NOW(), NOW(), NOW()) RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, referralCode))
}

func (r *userRepository) Activate(ctx context.Context, id int64, referralCode string, at time.Time) error {
	query := `UPDATE users
	          SET is_active = TRUE,
	              referral_code = COALESCE(referral_code, $2),
	              activated_at = COALESCE(activated_at, $3),
	              updated_at = NOW()
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, referralCode, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("ActivateUser", "user %d not found", id)
	}
	return nil
}

func (r *userRepository) ListDirectReferrals(ctx context.Context, sponsorID int64) ([]int64, error) {
	query := `SELECT id FROM users WHERE sponsor_id = $1 AND is_active AND NOT is_system ORDER BY id`
	return queryIDs(ctx, r.db, query, sponsorID)
}

func (r *userRepository) CountDirectReferrals(ctx context.Context, sponsorIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(sponsorIDs))
	if len(sponsorIDs) == 0 {
		return counts, nil
	}
	query := `SELECT sponsor_id, COUNT(*) FROM users
	          WHERE sponsor_id = ANY($1) AND is_active AND NOT is_system
	          GROUP BY sponsor_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(sponsorIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sponsorID int64
		var count int
		if err := rows.Scan(&sponsorID, &count); err != nil {
			return nil, err
		}
		counts[sponsorID] = count
	}
	return counts, rows.Err()
}

func (r *userRepository) SetEligibility(ctx context.Context, id int64, eligible bool) error {
	query := `UPDATE users SET is_eligible_repurchase = $2,
	              updated_at = CASE WHEN is_eligible_repurchase <> $2 THEN NOW() ELSE updated_at END
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, eligible)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("SetEligibility", "user %d not found", id)
	}
	return nil
}

func (r *userRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM users WHERE is_active AND NOT is_system ORDER BY id`)
}

func (r *userRepository) ListActiveByLevel(ctx context.Context, level int) ([]int64, error) {
	query := `SELECT id FROM users WHERE is_active AND NOT is_system AND level = $1 ORDER BY id`
	return queryIDs(ctx, r.db, query, level)
}

func (r *userRepository) IncrementTeams(ctx context.Context, id int64) (int, error) {
	var total int
	query := `UPDATE users SET total_teams = total_teams + 1, updated_at = NOW() WHERE id = $1 RETURNING total_teams`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("IncrementTeams", "user %d not found", id)
	}
	return total, err
}

func (r *userRepository) RaiseLevel(ctx context.Context, id int64, level int) (int, error) {
	var stored int
	query := `UPDATE users SET level = GREATEST(level, $2), updated_at = NOW() WHERE id = $1 RETURNING level`
	err := r.db.QueryRowContext(ctx, query, id, level).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("RaiseLevel", "user %d not found", id)
	}
	return stored, err
}

func (r *userRepository) AddMonthlyPurchase(ctx context.Context, id int64, amount int64) error {
	query := `UPDATE users SET monthly_purchase = monthly_purchase + $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, amount)
	return err
}

func (r *userRepository) ResetMonthlyPurchases(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET monthly_purchase = 0, updated_at = NOW() WHERE monthly_purchase <> 0`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
