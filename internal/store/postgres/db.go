package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"claimease/internal/config"
)

// TableName is the key-value table created by db/migrations.
const TableName = "kv_entries"

// NewDB opens the PostgreSQL pool backing the key-value store and checks
// that the kv table has been migrated.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := CheckSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CheckSchema reports an error when the kv table does not exist.
func CheckSchema(ctx context.Context, db *sqlx.DB) error {
	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT to_regclass($1) IS NOT NULL`, TableName); err != nil {
		return fmt.Errorf("checking for table %s: %w", TableName, err)
	}
	if !exists {
		return fmt.Errorf("table %s not found: run `migrate up` first", TableName)
	}
	return nil
}
