package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/mediavault/internal/store"
)

func TestClassify(t *testing.T) {
	cases := map[string]string{
		"Movie.mkv":     "video",
		"song.flac":     "audio",
		"subs.srt":      "subtitle",
		"poster.jpg":    "image",
		"readme.txt":    "other",
		"NOEXTENSION":   "other",
	}
	for name, want := range cases {
		if got := string(Classify(name)); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestScanIndexesFilesAndRecordsHistory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Movie.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, ".hidden"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".hidden", "nope.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	s := New(st, nil)
	var progressCalls int
	hist, err := s.Scan(context.Background(), root, func(seen int, file string) {
		progressCalls++
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if hist.FilesSeen != 1 {
		t.Errorf("expected 1 file seen (hidden dir skipped), got %d", hist.FilesSeen)
	}
	if progressCalls == 0 {
		t.Errorf("expected at least one progress callback")
	}

	files, err := st.ListFiles(context.Background(), store.ListFilter{}, store.Page{})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 indexed file, got %d", len(files))
	}
	if files[0].FileType != "video" {
		t.Errorf("expected video classification, got %s", files[0].FileType)
	}
}
