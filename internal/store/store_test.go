package store_test

import (
	"WyvernExchange/internal/store"
	"WyvernExchange/internal/testutil"
	"bytes"
	"context"
	"errors"
	"testing"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		if _, err := s.Get(ctx, []byte("contract/missing")); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("read your writes", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		defer tx.Rollback()

		if err := tx.Set([]byte("contract/ryw"), []byte("v1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := tx.Get([]byte("contract/ryw"))
		if err != nil || !bytes.Equal(got, []byte("v1")) {
			t.Errorf("got (%q, %v), want (v1, nil)", got, err)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if err := tx.Set([]byte("contract/rollback"), []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback: %v", err)
		}
		if _, err := s.Get(ctx, []byte("contract/rollback")); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("rolled-back write visible: %v", err)
		}
	})

	t.Run("commit publishes all writes", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		defer tx.Rollback()

		tx.Set([]byte("contract/a"), []byte("1"))
		tx.Set([]byte("contract/b"), []byte("2"))
		tx.Set([]byte("contract/a"), []byte("3"))

		if _, err := s.Get(ctx, []byte("contract/b")); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("uncommitted write visible outside tx: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}

		a, _ := s.Get(ctx, []byte("contract/a"))
		b, _ := s.Get(ctx, []byte("contract/b"))
		if string(a) != "3" || string(b) != "2" {
			t.Errorf("got a=%q b=%q, want a=3 b=2", a, b)
		}
	})

	t.Run("has", func(t *testing.T) {
		tx, err := s.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}
		defer tx.Rollback()

		ok, err := store.Has(tx, []byte("contract/a"))
		if err != nil || !ok {
			t.Errorf("Has(contract/a) = (%v, %v), want (true, nil)", ok, err)
		}
		ok, err = store.Has(tx, []byte("contract/nope"))
		if err != nil || ok {
			t.Errorf("Has(contract/nope) = (%v, %v), want (false, nil)", ok, err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, store.NewMemoryStore())
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	s := store.NewMemoryStore()
	tx, _ := s.Begin(context.Background())
	v := []byte("abc")
	tx.Set([]byte("k"), v)
	tx.Commit()
	v[0] = 'z'

	got, _ := s.Get(context.Background(), []byte("k"))
	if string(got) != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}

func TestMemoryStore_UseAfterCommit(t *testing.T) {
	s := store.NewMemoryStore()
	tx, _ := s.Begin(context.Background())
	tx.Commit()

	if err := tx.Set([]byte("k"), []byte("v")); err == nil {
		t.Error("Set after Commit should fail")
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback after Commit should be a no-op, got %v", err)
	}
}

func TestPebbleStore(t *testing.T) {
	s, err := store.OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	defer s.Close()

	runStoreContract(t, s)
}

func TestPebbleStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenPebble(dir)
	if err != nil {
		t.Fatalf("OpenPebble: %v", err)
	}
	tx, _ := s.Begin(context.Background())
	tx.Set([]byte("durable"), []byte("yes"))
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	s.Close()

	s, err = store.OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), []byte("durable"))
	if err != nil || string(got) != "yes" {
		t.Errorf("got (%q, %v), want (yes, nil)", got, err)
	}
}

func TestPostgresStore(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	runStoreContract(t, store.NewPostgresStore(db))
}
