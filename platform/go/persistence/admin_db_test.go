package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx and records Exec statements invoked.
type fakeTx struct {
	stmts      []string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}
func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}
func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return &pgconn.StatementDescription{}, errors.New("not implemented")
}
func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	return pgconn.CommandTag{}, nil
}
func (f *fakeTx) Conn() *pgx.Conn { return nil }

// fakePool returns a preconstructed transaction and records the options used.
type fakePool struct {
	tx   *fakeTx
	opts []pgx.TxOptions
}

func (p *fakePool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	p.opts = append(p.opts, txOptions)
	return p.tx, nil
}

func TestAdminDBWithTxSetsLocalSearchPath(t *testing.T) {
	ftx := &fakeTx{}
	pool := &fakePool{tx: ftx}
	db := &AdminDB{pool: pool, adminSchema: "admin"}

	err := db.WithTx(context.Background(), func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.Len(t, ftx.stmts, 1)
	require.Contains(t, strings.ToLower(ftx.stmts[0]), "set_config('search_path'")
	require.True(t, ftx.committed)
	require.Equal(t, pgx.TxOptions{}, pool.opts[0])
}

func TestAdminDBWithSnapshotIsRepeatableReadReadOnly(t *testing.T) {
	ftx := &fakeTx{}
	pool := &fakePool{tx: ftx}
	db := &AdminDB{pool: pool, adminSchema: "admin"}

	require.NoError(t, db.WithSnapshot(context.Background(), func(tx pgx.Tx) error { return nil }))
	require.Equal(t, pgx.RepeatableRead, pool.opts[0].IsoLevel)
	require.Equal(t, pgx.ReadOnly, pool.opts[0].AccessMode)
}

func TestAdminDBDoesNotCommitOnError(t *testing.T) {
	ftx := &fakeTx{}
	db := &AdminDB{pool: &fakePool{tx: ftx}, adminSchema: "admin"}

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), func(tx pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, ftx.committed)
	require.True(t, ftx.rolledBack)
}
