package mutate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/store"
)

func newTestMutator(t *testing.T) (*Mutator, afero.Fs, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fs := afero.NewMemMapFs()
	return New(fs, st, "/trash", 0), fs, st
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test file %s: %v", path, err)
	}
}

func TestRenameMovesFileAndLogsOperation(t *testing.T) {
	ctx := context.Background()
	m, fs, st := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "data")

	dest, err := m.Rename(ctx, "/media/a.mkv", "/media/b.mkv")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if dest != "/media/b.mkv" {
		t.Errorf("expected unchanged destination, got %q", dest)
	}
	if ok, _ := afero.Exists(fs, "/media/b.mkv"); !ok {
		t.Error("expected destination to exist")
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); ok {
		t.Error("expected source to be gone")
	}

	logs, err := st.ListOperationLog(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].SrcPath != "/media/a.mkv" || logs[0].DstPath != "/media/b.mkv" {
		t.Fatalf("unexpected log: %+v", logs)
	}
}

func TestRenameUniquifiesOnCollision(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "data")
	writeFile(t, fs, "/media/b.mkv", "existing")

	dest, err := m.Rename(ctx, "/media/a.mkv", "/media/b.mkv")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if dest != "/media/b (1).mkv" {
		t.Errorf("expected uniquified destination, got %q", dest)
	}
	if got, _ := afero.ReadFile(fs, "/media/b.mkv"); string(got) != "existing" {
		t.Error("expected original destination file to survive untouched")
	}
	if got, _ := afero.ReadFile(fs, "/media/b (1).mkv"); string(got) != "data" {
		t.Error("expected renamed file at the uniquified path")
	}
}

func TestCopyPreservesSourceAndCreatesDestination(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "hello world")

	if err := m.Copy(ctx, "/media/a.mkv", "/other/a.mkv"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := afero.ReadFile(fs, "/other/a.mkv")
	if err != nil || string(got) != "hello world" {
		t.Fatalf("unexpected copy result: %q, err=%v", got, err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); !ok {
		t.Error("expected source to survive a copy")
	}
}

func TestTrashAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, fs, st := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "data")

	item, err := m.Trash(ctx, "/media/a.mkv")
	if err != nil {
		t.Fatalf("Trash: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); ok {
		t.Error("expected original path to be gone after trash")
	}
	if ok, _ := afero.Exists(fs, item.TrashPath); !ok {
		t.Error("expected trash path to exist")
	}

	if err := m.Restore(ctx, item.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); !ok {
		t.Error("expected original path restored")
	}
	if _, err := st.GetTrash(ctx, item.ID); err == nil {
		t.Error("expected trash record to be removed after restore")
	}
}

func TestRestoreFailsWhenOriginalPathOccupied(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "data")

	item, err := m.Trash(ctx, "/media/a.mkv")
	if err != nil {
		t.Fatalf("Trash: %v", err)
	}
	writeFile(t, fs, "/media/a.mkv", "new file occupying the original path")

	err = m.Restore(ctx, item.ID)
	if err == nil {
		t.Fatal("expected Restore to fail when the original path is occupied")
	}
	if apperr.KindOf(err) != apperr.Conflict {
		t.Errorf("expected a Conflict error, got %v", err)
	}
	if ok, _ := afero.Exists(fs, item.TrashPath); !ok {
		t.Error("expected trashed file to remain in trash after a failed restore")
	}
}

func TestDeleteRemovesFilePermanently(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestMutator(t)
	writeFile(t, fs, "/media/a.mkv", "data")

	if err := m.Delete(ctx, "/media/a.mkv"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/media/a.mkv"); ok {
		t.Error("expected file to be deleted")
	}
}

func TestBulkDeleteRemovesAllFiles(t *testing.T) {
	ctx := context.Background()
	m, fs, _ := newTestMutator(t)
	paths := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		p := filepath.Join("/media", "f"+string(rune('a'+i))+".mkv")
		writeFile(t, fs, p, "data")
		paths = append(paths, p)
	}

	result := m.BulkDelete(ctx, paths, 2)
	if result.Deleted != 20 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, p := range paths {
		if ok, _ := afero.Exists(fs, p); ok {
			t.Errorf("expected %s to be deleted", p)
		}
	}
}

func TestRenderTemplateSubstitutesKnownTokens(t *testing.T) {
	got := RenderTemplate("{title} ({year}).{ext}", TemplateFields{Title: "Inception", Year: 2010, Ext: "mkv"})
	if got != "Inception (2010).mkv" {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestRenderTemplatePadsSeasonAndEpisode(t *testing.T) {
	got := RenderTemplate("{title} S{season:02d}E{episode:02d}.{ext}", TemplateFields{Title: "Show", Season: 1, Episode: 3, Ext: "mkv"})
	if got != "Show S01E03.mkv" {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestRenderTemplateLeavesUnknownTokenLiteral(t *testing.T) {
	got := RenderTemplate("{title} {unknown}", TemplateFields{Title: "X"})
	if got != "X {unknown}" {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestBulkDeleteReportsFailuresForMissingFiles(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMutator(t)

	result := m.BulkDelete(ctx, []string{"/does/not/exist.mkv"}, 1)
	if result.Failed != 1 || result.Deleted != 0 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
}
