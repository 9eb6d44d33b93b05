package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txBeginner exposes the minimal pgx pool behaviour needed by AdminDB.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// AdminDB runs transactions with search_path pinned to the admin schema that holds the
// provisioning store.
type AdminDB struct {
	pool        txBeginner
	adminSchema string
}

type AdminDBConfig struct {
	Pool        *pgxpool.Pool
	AdminSchema string
}

func NewAdminDB(cfg AdminDBConfig) *AdminDB {
	if cfg.Pool == nil {
		panic("AdminDB requires pool")
	}

	adminSchema := strings.TrimSpace(cfg.AdminSchema)
	if adminSchema == "" {
		panic("AdminDB requires admin schema")
	}
	return &AdminDB{pool: cfg.Pool, adminSchema: adminSchema}
}

// Schema returns the admin schema name.
func (db *AdminDB) Schema() string {
	return db.adminSchema
}

// WithTx executes fn inside a read-write transaction.
func (db *AdminDB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{}, fn)
}

// WithSnapshot executes fn inside a REPEATABLE READ read-only transaction so every
// statement observes the same committed state.
func (db *AdminDB) WithSnapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (db *AdminDB) run(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// is_local=true keeps the setting from leaking to the pooled connection
	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.adminSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
