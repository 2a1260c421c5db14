package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is an embedded, durable backend. Transactions are indexed
// batches: reads see the batch's own writes and Commit applies them
// atomically with fsync.
type PebbleStore struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Begin(_ context.Context) (Tx, error) {
	return &pebbleTx{batch: s.db.NewIndexedBatch()}, nil
}

func (s *PebbleStore) Get(_ context.Context, key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

type pebbleTx struct {
	batch *pebble.Batch
	done  bool
}

func (tx *pebbleTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, errTxDone
	}
	val, closer, err := tx.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (tx *pebbleTx) Set(key, value []byte) error {
	if tx.done {
		return errTxDone
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *pebbleTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	defer tx.batch.Close()
	return tx.batch.Commit(pebble.Sync)
}

func (tx *pebbleTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.batch.Close()
}
