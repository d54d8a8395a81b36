package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
	"matrix-commission-backend/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the connection pool and hands out transaction-scoped repositories.
type Store struct {
	db *sql.DB
	repository.Repositories
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Repositories: newRepositories(db),
	}
}

// Reader returns repositories bound to the pool.
func (s *Store) Reader() repository.Repositories {
	return s.Repositories
}

// WithinTx runs fn in a serializable transaction. Lock and serialization failures
// surface as domain.ErrConcurrencyConflict.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify("begin", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return classify("transaction", err)
	}

	if err := tx.Commit(); err != nil {
		logger.DatabaseResult("commit", 0, err)
		return classify("commit", err)
	}
	return nil
}

// PingContext checks connectivity, used by the health endpoint.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// racyUniqueKeys are the unique indexes two concurrent placements can collide on.
// A retry re-reads the tree and picks another slot.
var racyUniqueKeys = map[string]bool{
	"matrix_nodes_parent_position_key": true,
	"matrix_nodes_pkey":                true,
	"idx_teams_one_forming":            true,
}

// classify maps driver errors onto the domain taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return domain.Conflict(op, err)
		case "23505": // unique_violation
			if racyUniqueKeys[pqErr.Constraint] {
				return domain.Conflict(op, err)
			}
			return domain.Validation(op, "duplicate value violates %s: %s", pqErr.Constraint, pqErr.Detail)
		}
	}
	return err
}

type repositories struct {
	users       *userRepository
	matrix      *matrixRepository
	hierarchy   *hierarchyRepository
	orders      *orderRepository
	ledger      *ledgerRepository
	schedules   *scheduleRepository
	teams       *teamRepository
	pool        *poolRepository
	idempotency *idempotencyRepository
	withdrawals *withdrawalRepository
	locks       *lockRepository
}

func newRepositories(q DBTX) *repositories {
	return &repositories{
		users:       &userRepository{db: q},
		matrix:      &matrixRepository{db: q},
		hierarchy:   &hierarchyRepository{db: q},
		orders:      &orderRepository{db: q},
		ledger:      &ledgerRepository{db: q},
		schedules:   &scheduleRepository{db: q},
		teams:       &teamRepository{db: q},
		pool:        &poolRepository{db: q},
		idempotency: &idempotencyRepository{db: q},
		withdrawals: &withdrawalRepository{db: q},
		locks:       &lockRepository{db: q},
	}
}

func (r *repositories) Users() repository.UserRepository             { return r.users }
func (r *repositories) Matrix() repository.MatrixRepository          { return r.matrix }
func (r *repositories) Hierarchy() repository.HierarchyRepository    { return r.hierarchy }
func (r *repositories) Orders() repository.OrderRepository           { return r.orders }
func (r *repositories) Ledger() repository.LedgerRepository          { return r.ledger }
func (r *repositories) Schedules() repository.ScheduleRepository     { return r.schedules }
func (r *repositories) Teams() repository.TeamRepository             { return r.teams }
func (r *repositories) Pool() repository.PoolRepository              { return r.pool }
func (r *repositories) Idempotency() repository.IdempotencyRepository { return r.idempotency }
func (r *repositories) Withdrawals() repository.WithdrawalRepository { return r.withdrawals }
func (r *repositories) Locks() repository.LockRepository             { return r.locks }

// queryIDs runs a single-column id query.
func queryIDs(ctx context.Context, db DBTX, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
