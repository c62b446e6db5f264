package undo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/gwlsn/mediavault/internal/mutate"
	"github.com/gwlsn/mediavault/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *mutate.Mutator, afero.Fs, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fs := afero.NewMemMapFs()
	mut := mutate.New(fs, st, "/trash", 0)
	return New(st, mut), mut, fs, st
}

func TestUndoRenameMovesFileBack(t *testing.T) {
	ctx := context.Background()
	e, mut, fs, st := newTestEngine(t)
	if err := afero.WriteFile(fs, "/media/a.mkv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mut.Rename(ctx, "/media/a.mkv", "/media/b.mkv"); err != nil {
		t.Fatal(err)
	}
	logs, err := st.ListOperationLog(ctx, 1)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %v err=%v", logs, err)
	}

	if err := e.Undo(ctx, logs[0].ID); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); !ok {
		t.Error("expected original path restored after undo")
	}
	if ok, _ := afero.Exists(fs, "/media/b.mkv"); ok {
		t.Error("expected renamed path gone after undo")
	}

	reloaded, err := st.GetOperationLog(ctx, logs[0].ID)
	if err != nil || !reloaded.Undone {
		t.Fatalf("expected entry marked undone, got %+v err=%v", reloaded, err)
	}
}

func TestUndoTrashRestoresFile(t *testing.T) {
	ctx := context.Background()
	e, mut, fs, st := newTestEngine(t)
	if err := afero.WriteFile(fs, "/media/a.mkv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mut.Trash(ctx, "/media/a.mkv"); err != nil {
		t.Fatal(err)
	}
	logs, err := st.ListOperationLog(ctx, 1)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %v err=%v", logs, err)
	}

	if err := e.Undo(ctx, logs[0].ID); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); !ok {
		t.Error("expected file restored from trash")
	}
}

func TestUndoCopyIsRejected(t *testing.T) {
	ctx := context.Background()
	e, mut, fs, st := newTestEngine(t)
	if err := afero.WriteFile(fs, "/media/a.mkv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mut.Copy(ctx, "/media/a.mkv", "/media/b.mkv"); err != nil {
		t.Fatal(err)
	}
	logs, err := st.ListOperationLog(ctx, 1)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %v err=%v", logs, err)
	}

	if err := e.Undo(ctx, logs[0].ID); err == nil {
		t.Error("expected copy undo to be rejected")
	}
}

func TestUndoAlreadyUndoneIsRejected(t *testing.T) {
	ctx := context.Background()
	e, mut, fs, st := newTestEngine(t)
	if err := afero.WriteFile(fs, "/media/a.mkv", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := mut.Rename(ctx, "/media/a.mkv", "/media/b.mkv"); err != nil {
		t.Fatal(err)
	}
	logs, err := st.ListOperationLog(ctx, 1)
	if err != nil || len(logs) != 1 {
		t.Fatal(err)
	}
	if err := e.Undo(ctx, logs[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := e.Undo(ctx, logs[0].ID); err == nil {
		t.Error("expected second undo of the same entry to be rejected")
	}
}
