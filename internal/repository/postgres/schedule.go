package postgres

import (
	"context"
	"database/sql"
	"time"

	"matrix-commission-backend/internal/domain"
)

type scheduleRepository struct {
	db DBTX
}

func (r *scheduleRepository) CreateBatch(ctx context.Context, rows []domain.SelfPayoutSchedule) error {
	query := `INSERT INTO self_payout_schedules (user_id, order_id, installment, amount, due_at, status)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	for i := range rows {
		s := &rows[i]
		if s.Status == "" {
			s.Status = domain.PayoutStatusScheduled
		}
		err := r.db.QueryRowContext(ctx, query, s.UserID, s.OrderID, s.Installment, s.Amount, s.DueAt, s.Status).Scan(&s.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListDue locks due rows. SKIP LOCKED keeps a second sweeper from blocking on the same rows.
func (r *scheduleRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.SelfPayoutSchedule, error) {
	query := `SELECT id, user_id, order_id, installment, amount, due_at, status, paid_at
	          FROM self_payout_schedules
	          WHERE status = 'scheduled' AND due_at <= $1
	          ORDER BY due_at, id
	          LIMIT $2
	          FOR UPDATE SKIP LOCKED`
	return r.query(ctx, query, now, limit)
}

func (r *scheduleRepository) MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE self_payout_schedules SET status = 'paid', paid_at = $2 WHERE id = $1 AND status = 'scheduled'`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *scheduleRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.SelfPayoutSchedule, error) {
	query := `SELECT id, user_id, order_id, installment, amount, due_at, status, paid_at
	          FROM self_payout_schedules WHERE order_id = $1 ORDER BY installment`
	return r.query(ctx, query, orderID)
}

func (r *scheduleRepository) query(ctx context.Context, query string, args ...any) ([]domain.SelfPayoutSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SelfPayoutSchedule
	for rows.Next() {
		var s domain.SelfPayoutSchedule
		var paidAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.UserID, &s.OrderID, &s.Installment, &s.Amount, &s.DueAt, &s.Status, &paidAt); err != nil {
			return nil, err
		}
		s.PaidAt = nullTimePtr(paidAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
