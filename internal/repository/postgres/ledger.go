package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
)

type ledgerRepository struct {
	db DBTX
}

func scanEntry(row rowScanner) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var userID, levelDepth sql.NullInt64
	if err := row.Scan(&e.ID, &userID, &e.Type, &e.Amount, &levelDepth, &e.Ref, &e.Note, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.UserID = nullInt64Ptr(userID)
	e.LevelDepth = nullIntPtr(levelDepth)
	return e, nil
}

func (r *ledgerRepository) Post(ctx context.Context, entry *domain.LedgerEntry) error {
	logger.EnterMethod("ledgerRepository.Post", "type", entry.Type, "amount", entry.Amount, "ref", entry.Ref)

	query := `INSERT INTO ledger_entries (user_id, type, amount, level_depth, ref, note, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, entry.UserID, entry.Type, entry.Amount, entry.LevelDepth, entry.Ref, entry.Note).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.Post", err)
		return err
	}

	if entry.UserID != nil && entry.Amount != 0 {
		res, err := r.db.ExecContext(ctx,
			`UPDATE users SET wallet_balance = wallet_balance + $2, updated_at = NOW() WHERE id = $1`,
			*entry.UserID, entry.Amount)
		if err != nil {
			logger.ExitMethodWithError("ledgerRepository.Post", err)
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound("PostLedgerEntry", "wallet owner %d not found", *entry.UserID)
		}
	}

	logger.ExitMethod("ledgerRepository.Post", "entry_id", entry.ID)
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	query := `SELECT id, user_id, type, amount, level_depth, ref, note, created_at FROM ledger_entries WHERE id = $1`
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetLedgerEntry", "ledger entry %d not found", id)
	}
	return e, err
}

func (r *ledgerRepository) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}
	argIndex := 2

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, fmt.Sprintf("type = ANY($%d)", argIndex))
		args = append(args, pq.Array(types))
		argIndex++
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}
	whereSQL := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	query := fmt.Sprintf(`SELECT id, user_id, type, amount, level_depth, ref, note, created_at FROM ledger_entries
	          WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, whereSQL, argIndex, argIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

func (r *ledgerRepository) ExistsByRef(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE ref = $1)`, ref).Scan(&exists)
	return exists, err
}

func (r *ledgerRepository) SumByRef(ctx context.Context, ref string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE ref = $1`, ref).Scan(&sum)
	return sum, err
}

func (r *ledgerRepository) BalanceAt(ctx context.Context, userID int64, at time.Time) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1 AND created_at <= $2`
	err := r.db.QueryRowContext(ctx, query, userID, at).Scan(&sum)
	return sum, err
}

func (r *ledgerRepository) ListWalletMismatches(ctx context.Context) ([]domain.WalletMismatch, error) {
	query := `SELECT u.id, u.wallet_balance, COALESCE(l.total, 0)
	          FROM users u
	          LEFT JOIN (SELECT user_id, SUM(amount) AS total FROM ledger_entries WHERE user_id IS NOT NULL GROUP BY user_id) l
	            ON l.user_id = u.id
	          WHERE u.wallet_balance <> COALESCE(l.total, 0)
	          ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WalletMismatch
	for rows.Next() {
		var m domain.WalletMismatch
		if err := rows.Scan(&m.UserID, &m.WalletBalance, &m.LedgerBalance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
