package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is a transactional key-value store. Every mutation goes through a Tx
// so that a failed operation leaves no trace.
type Store interface {
	// Begin opens a transaction. Reads inside the transaction observe its own
	// writes.
	Begin(ctx context.Context) (Tx, error)

	// Get reads a committed value.
	Get(ctx context.Context, key []byte) ([]byte, error)

	Close() error
}

// Tx buffers writes until Commit. Rollback after Commit is a no-op, so
// callers can always defer it.
type Tx interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Commit() error
	Rollback() error
}

// Has reports whether key exists in tx.
func Has(tx Tx, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
