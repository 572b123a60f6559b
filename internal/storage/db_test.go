package storage

import (
	"bytes"
	"errors"
	"testing"
)

// testBackends returns one of each DB implementation for cross-impl tests.
func testBackends(t *testing.T) map[string]DB {
	t.Helper()

	bdb, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	t.Cleanup(func() { bdb.Close() })

	return map[string]DB{
		"memory": NewMemory(),
		"badger": bdb,
	}
}

func TestDB_PutGet(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("vault/default")
			value := []byte("ciphertext-blob")

			if err := db.Put(key, value); err != nil {
				t.Fatalf("Put() error: %v", err)
			}

			got, err := db.Get(key)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if !bytes.Equal(got, value) {
				t.Errorf("Get() = %q, want %q", got, value)
			}
		})
	}
}

func TestDB_GetMissing(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("nonexistent"))
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDB_Delete(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("active_account")
			if err := db.Put(key, []byte("alice")); err != nil {
				t.Fatalf("Put() error: %v", err)
			}
			if err := db.Delete(key); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}

			has, err := db.Has(key)
			if err != nil {
				t.Fatalf("Has() error: %v", err)
			}
			if has {
				t.Error("Has() = true after Delete")
			}
		})
	}
}

func TestDB_Overwrite(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := []byte("k")
			db.Put(key, []byte("first"))
			db.Put(key, []byte("second"))

			got, err := db.Get(key)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if string(got) != "second" {
				t.Errorf("Get() = %q, want %q", got, "second")
			}
		})
	}
}

func TestBadger_Persistence(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}
