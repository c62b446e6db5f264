package dedupe

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mediaFile(path, strongHash, catalogID, title string) *model.MediaFile {
	now := time.Now()
	return &model.MediaFile{
		ID: uuid.New(), Path: path, Size: 100, ModTime: now,
		FileType: model.FileTypeVideo, StrongHash: strongHash, CatalogID: catalogID,
		Title: title, FirstSeen: now, LastSeen: now,
	}
}

func TestFindExactGroupsByStrongHash(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	files := []*model.MediaFile{
		mediaFile("/a.mkv", "hash1", "", ""),
		mediaFile("/b.mkv", "hash1", "", ""),
		mediaFile("/c.mkv", "hash2", "", ""),
	}
	if err := st.UpsertFiles(ctx, files); err != nil {
		t.Fatal(err)
	}

	groups, err := New(st).FindExact(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Files) != 2 {
		t.Fatalf("expected 1 group of 2, got %+v", groups)
	}
}

func TestFindExactOrdersByQualityThenSizeThenPathAndComputesWastedSpace(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	best := mediaFile("/z-best.mkv", "hash1", "", "")
	best.Quality = 80
	best.Size = 100
	worst := mediaFile("/a-worst.mkv", "hash1", "", "")
	worst.Quality = 60
	worst.Size = 100
	if err := st.UpsertFiles(ctx, []*model.MediaFile{worst, best}); err != nil {
		t.Fatal(err)
	}

	groups, err := New(st).FindExact(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Files) != 2 {
		t.Fatalf("expected 1 group of 2, got %+v", groups)
	}
	g := groups[0]
	if g.Files[0].Path != "/z-best.mkv" || g.Files[0].Status != statusKeep {
		t.Errorf("expected higher-quality file first and tagged keep, got %+v", g.Files[0])
	}
	if g.Files[1].Path != "/a-worst.mkv" || g.Files[1].Status != statusRedundant {
		t.Errorf("expected lower-quality file second and tagged redundant, got %+v", g.Files[1])
	}
	if g.WastedSpace != 100 {
		t.Errorf("expected wasted space 100 (the redundant copy's size), got %d", g.WastedSpace)
	}
	if g.TotalSize != 200 {
		t.Errorf("expected total size 200, got %d", g.TotalSize)
	}
}

func TestFindExactIgnoresFlaggedFiles(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	f1 := mediaFile("/a.mkv", "hash1", "", "")
	f2 := mediaFile("/b.mkv", "hash1", "", "")
	f2.Ignored = true
	if err := st.UpsertFiles(ctx, []*model.MediaFile{f1, f2}); err != nil {
		t.Fatal(err)
	}

	groups, err := New(st).FindExact(ctx, store.ListFilter{})
	if err != nil {
		t.Fatalf("FindExact: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups once one side is ignored, got %+v", groups)
	}
}

func TestFindFuzzyGroupsSimilarTitles(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	files := []*model.MediaFile{
		mediaFile("/a.mkv", "", "", "The Matrix 1999 1080p BluRay"),
		mediaFile("/b.mkv", "", "", "The Matrix 1999 720p WEB-DL"),
		mediaFile("/c.mkv", "", "", "Totally Unrelated Documentary"),
	}
	if err := st.UpsertFiles(ctx, files); err != nil {
		t.Fatal(err)
	}

	groups, err := New(st).FindFuzzy(ctx, store.ListFilter{}, 0.6)
	if err != nil {
		t.Fatalf("FindFuzzy: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Files) != 2 {
		t.Fatalf("expected 1 group of 2 similar titles, got %+v", groups)
	}
}

func TestNormalizeTitleStripsPunctuation(t *testing.T) {
	got := normalizeTitle("The.Matrix.1999.1080p.BluRay-GROUP", "")
	if got != "the matrix 1999 group" {
		t.Errorf("unexpected normalization: %q", got)
	}
}

func TestNormalizeTitleStripsEpisodeQualityAndSourceTokens(t *testing.T) {
	cases := map[string]string{
		"Predator 2025 1080p.mkv":             "predator 2025",
		"Predator.2025.1080p.WEB-DL.mkv":      "predator 2025",
		"Show.Name.S01E02.720p.HDTV.mkv":      "show name",
		"Show Name 1x02 2160p BluRay.mkv":     "show name",
	}
	for path, want := range cases {
		if got := normalizeTitle("", path); got != want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", path, got, want)
		}
	}
}
