package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"matrix-commission-backend/internal/domain"
)

type poolRepository struct {
	db DBTX
}

func (r *poolRepository) get(ctx context.Context, query string) (*domain.TurnoverPool, error) {
	p := &domain.TurnoverPool{}
	err := r.db.QueryRowContext(ctx, query).Scan(&p.Undistributed, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// row is seeded by the schema; an empty table is an empty pool
		return &domain.TurnoverPool{}, nil
	}
	return p, err
}

func (r *poolRepository) Get(ctx context.Context) (*domain.TurnoverPool, error) {
	return r.get(ctx, `SELECT undistributed_amount, updated_at FROM turnover_pool WHERE id = 1`)
}

func (r *poolRepository) GetForUpdate(ctx context.Context) (*domain.TurnoverPool, error) {
	return r.get(ctx, `SELECT undistributed_amount, updated_at FROM turnover_pool WHERE id = 1 FOR UPDATE`)
}

func (r *poolRepository) Add(ctx context.Context, amount int64) error {
	query := `INSERT INTO turnover_pool (id, undistributed_amount, updated_at) VALUES (1, $1, NOW())
	          ON CONFLICT (id) DO UPDATE
	          SET undistributed_amount = turnover_pool.undistributed_amount + EXCLUDED.undistributed_amount,
	              updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, amount)
	return err
}

func (r *poolRepository) Subtract(ctx context.Context, amount int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE turnover_pool SET undistributed_amount = undistributed_amount - $1, updated_at = NOW()
		 WHERE id = 1 AND undistributed_amount >= $1`, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Structural("SubtractPool", "turnover pool holds less than %d", amount)
	}
	return nil
}

func (r *poolRepository) SaveDistribution(ctx context.Context, d *domain.PoolDistribution) error {
	levels, err := json.Marshal(d.Levels)
	if err != nil {
		return err
	}
	payouts, err := json.Marshal(d.Payouts)
	if err != nil {
		return err
	}
	query := `INSERT INTO pool_distributions (id, admin_id, total_amount, distributed_amount, carried_amount, levels, payouts, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, d.ID, d.AdminID, d.TotalAmount, d.DistributedAmount, d.CarriedAmount, levels, payouts).
		Scan(&d.CreatedAt)
}

func (r *poolRepository) LastDistribution(ctx context.Context) (*domain.PoolDistribution, error) {
	d := &domain.PoolDistribution{}
	var levels, payouts []byte
	query := `SELECT id, admin_id, total_amount, distributed_amount, carried_amount, levels, payouts, created_at
	          FROM pool_distributions ORDER BY created_at DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query).Scan(&d.ID, &d.AdminID, &d.TotalAmount, &d.DistributedAmount, &d.CarriedAmount, &levels, &payouts, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("LastPoolDistribution", "no pool distribution yet")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(levels, &d.Levels); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payouts, &d.Payouts); err != nil {
		return nil, err
	}
	return d, nil
}
