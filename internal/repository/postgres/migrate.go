package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"matrix-commission-backend/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("EnsureSchema", "schema.sql")
	_, err := db.ExecContext(ctx, schemaSQL)
	logger.DatabaseResult("EnsureSchema", 0, err)
	return err
}
