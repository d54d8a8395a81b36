package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"matrix-commission-backend/internal/domain"
)

type orderRepository struct {
	db DBTX
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o := &domain.Order{}
	var paidAt sql.NullTime
	query := `SELECT id, user_id, total_amount, commission_amount, is_joining_order, paid_at FROM orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.CommissionAmount, &o.IsJoiningOrder, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetOrder", "order %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	o.PaidAt = nullTimePtr(paidAt)
	return o, nil
}

// MarkPaid only ever sets the joining flag, never clears it.
func (r *orderRepository) MarkPaid(ctx context.Context, id int64, joining bool, paidAt time.Time) error {
	query := `UPDATE orders
	          SET is_joining_order = is_joining_order OR $2,
	              paid_at = COALESCE(paid_at, $3)
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, joining, paidAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("MarkOrderPaid", "order %d not found", id)
	}
	return nil
}

type idempotencyRepository struct {
	db DBTX
}

func (r *idempotencyRepository) Claim(ctx context.Context, eventID string, orderID int64) (bool, error) {
	query := `INSERT INTO payment_events (event_id, order_id, processed_at) VALUES ($1, $2, NOW())
	          ON CONFLICT DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, eventID, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type withdrawalRepository struct {
	db DBTX
}

func (r *withdrawalRepository) SumPending(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests WHERE user_id = $1 AND status = 'pending'`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum)
	return sum, err
}

type lockRepository struct {
	db DBTX
}

func (r *lockRepository) TryAdvisoryXactLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&ok)
	return ok, err
}
