package hashing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gwlsn/mediavault/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, 16), st
}

func TestHashIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("hello world, this is test content"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, _ := newTestEngine(t)
	r1, err := e.Hash(context.Background(), path)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	r2, err := e.Hash(context.Background(), path)
	if err != nil {
		t.Fatalf("Hash second call: %v", err)
	}
	if r1 != r2 {
		t.Errorf("expected deterministic hash, got %+v != %+v", r1, r2)
	}
}

func TestHashPopulatesCacheEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("some content here"), 0o644); err != nil {
		t.Fatal(err)
	}

	e, st := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Hash(ctx, path); err != nil {
		t.Fatalf("Hash: %v", err)
	}

	info, _ := os.Stat(path)
	cached, err := st.GetHashCache(ctx, path, info.Size())
	if err != nil {
		t.Fatalf("expected cache entry, got err: %v", err)
	}
	if cached.FastHash == "" || cached.StrongHash == "" {
		t.Errorf("expected populated cache entry, got %+v", cached)
	}
}

func TestConcurrentHashCallsAreCoalesced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, make([]byte, 1<<20), 0o644); err != nil {
		t.Fatal(err)
	}

	e, _ := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Hash(ctx, path)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if results[i] != results[0] {
			t.Errorf("call %d result mismatch: %+v != %+v", i, results[i], results[0])
		}
	}
}
