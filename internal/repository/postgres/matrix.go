package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"matrix-commission-backend/internal/domain"
	"matrix-commission-backend/internal/logger"
)

type matrixRepository struct {
	db DBTX
}

func scanNode(row rowScanner) (*domain.MatrixNode, error) {
	n := &domain.MatrixNode{}
	var parentID, position sql.NullInt64
	if err := row.Scan(&n.UserID, &parentID, &position, &n.Depth, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ParentID = nullInt64Ptr(parentID)
	n.Position = nullIntPtr(position)
	return n, nil
}

func (r *matrixRepository) GetNode(ctx context.Context, userID int64) (*domain.MatrixNode, error) {
	query := `SELECT user_id, parent_id, position, depth, created_at FROM matrix_nodes WHERE user_id = $1`
	n, err := scanNode(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetNode", "user %d has no matrix node", userID)
	}
	return n, err
}

func (r *matrixRepository) GetRoot(ctx context.Context) (*domain.MatrixNode, error) {
	query := `SELECT user_id, parent_id, position, depth, created_at FROM matrix_nodes
	          WHERE parent_id IS NULL ORDER BY created_at, user_id LIMIT 1`
	n, err := scanNode(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("GetRoot", "matrix has no root")
	}
	return n, err
}

func (r *matrixRepository) ChildrenOf(ctx context.Context, parentIDs []int64) ([]domain.MatrixNode, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT user_id, parent_id, position, depth, created_at FROM matrix_nodes
	          WHERE parent_id = ANY($1)
	          ORDER BY array_position($1::bigint[], parent_id), position`
	logger.DatabaseCall("matrix.ChildrenOf", query, "parents", len(parentIDs))
	rows, err := r.db.QueryContext(ctx, query, pq.Array(parentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.MatrixNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	logger.DatabaseResult("matrix.ChildrenOf", int64(len(nodes)), rows.Err())
	return nodes, rows.Err()
}

func (r *matrixRepository) LockNode(ctx context.Context, userID int64) error {
	var locked int64
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM matrix_nodes WHERE user_id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("LockNode", "user %d has no matrix node", userID)
	}
	return err
}

func (r *matrixRepository) ChildPositions(ctx context.Context, parentID int64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT position FROM matrix_nodes WHERE parent_id = $1 ORDER BY position`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *matrixRepository) Insert(ctx context.Context, node *domain.MatrixNode) error {
	query := `INSERT INTO matrix_nodes (user_id, parent_id, position, depth, created_at)
	          VALUES ($1, $2, $3, $4, NOW()) RETURNING created_at`
	return r.db.QueryRowContext(ctx, query, node.UserID, node.ParentID, node.Position, node.Depth).Scan(&node.CreatedAt)
}

func (r *matrixRepository) ListAll(ctx context.Context) ([]domain.MatrixNode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, parent_id, position, depth, created_at FROM matrix_nodes ORDER BY depth, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.MatrixNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

type hierarchyRepository struct {
	db DBTX
}

// Insert writes closure rows. Existing rows are left untouched so repair runs are safe.
func (r *hierarchyRepository) Insert(ctx context.Context, rows []domain.HierarchyRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ancestors := make([]int64, len(rows))
	descendants := make([]int64, len(rows))
	depths := make([]int64, len(rows))
	for i, row := range rows {
		ancestors[i] = row.AncestorID
		descendants[i] = row.DescendantID
		depths[i] = int64(row.Depth)
	}
	query := `INSERT INTO user_hierarchy (ancestor_id, descendant_id, depth)
	          SELECT * FROM UNNEST($1::bigint[], $2::bigint[], $3::int[])
	          ON CONFLICT (ancestor_id, descendant_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, pq.Array(ancestors), pq.Array(descendants), pq.Array(depths))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *hierarchyRepository) Ancestors(ctx context.Context, descendantID int64, maxDepth int) ([]domain.HierarchyRow, error) {
	query := `SELECT ancestor_id, descendant_id, depth FROM user_hierarchy
	          WHERE descendant_id = $1 AND depth <= $2 ORDER BY depth`
	rows, err := r.db.QueryContext(ctx, query, descendantID, maxDepth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HierarchyRow
	for rows.Next() {
		var h domain.HierarchyRow
		if err := rows.Scan(&h.AncestorID, &h.DescendantID, &h.Depth); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
