package store

import (
	"context"
	"errors"
	"sync"
)

var errTxDone = errors.New("store: transaction already finished")

// MemoryStore keeps everything in a map. Used by tests and by the memory
// backend of wyvernd.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{store: s, writes: make(map[string][]byte)}, nil
}

func (s *MemoryStore) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(key)
}

func (s *MemoryStore) getLocked(key []byte) ([]byte, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Len returns the number of committed keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	writes map[string][]byte
	done   bool
}

func (tx *memoryTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, errTxDone
	}
	if v, ok := tx.writes[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return tx.store.Get(context.Background(), key)
}

func (tx *memoryTx) Set(key, value []byte) error {
	if tx.done {
		return errTxDone
	}
	tx.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for k, v := range tx.writes {
		tx.store.data[k] = v
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	tx.writes = nil
	return nil
}
