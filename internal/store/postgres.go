package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps keys in wyvern.kv. Transactions run at SERIALIZABLE so
// two processes cannot both finalize the same order hash; the loser's Commit
// fails with a serialization error.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &postgresTx{ctx: ctx, tx: tx}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return getRow(s.db.QueryRowContext(ctx, selectValue, key))
}

// Close does not close the shared *sql.DB.
func (s *PostgresStore) Close() error {
	return nil
}

const (
	selectValue = `SELECT value FROM wyvern.kv WHERE key = $1`
	upsertValue = `
        INSERT INTO wyvern.kv (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
    `
)

func getRow(row *sql.Row) ([]byte, error) {
	var value []byte
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

type postgresTx struct {
	ctx  context.Context
	tx   *sql.Tx
	done bool
}

func (t *postgresTx) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, errTxDone
	}
	return getRow(t.tx.QueryRowContext(t.ctx, selectValue, key))
}

func (t *postgresTx) Set(key, value []byte) error {
	if t.done {
		return errTxDone
	}
	if _, err := t.tx.ExecContext(t.ctx, upsertValue, key, value); err != nil {
		return fmt.Errorf("upsert key: %w", err)
	}
	return nil
}

func (t *postgresTx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *postgresTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
