// Package emptydirs finds directories with no files anywhere beneath
// them (bottom-up, so a directory containing only other empty
// directories counts as empty) and classifies them by a path-pattern
// category so a caller can bulk-delete a whole category at once.
package emptydirs

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gwlsn/mediavault/internal/apperr"
)

// Category buckets an empty directory by what its name suggests it once
// held, so a caller can review "sample" folders separately from
// ordinary leftover season folders.
type Category string

const (
	CategorySample     Category = "sample"
	CategoryExtras     Category = "extras"
	CategorySubtitle   Category = "subtitle"
	CategoryOther      Category = "other"
)

var categoryPatterns = []struct {
	pattern  *regexp.Regexp
	category Category
}{
	{regexp.MustCompile(`(?i)sample`), CategorySample},
	{regexp.MustCompile(`(?i)extras?|featurettes?|behind.the.scenes`), CategoryExtras},
	{regexp.MustCompile(`(?i)subs?|subtitles?`), CategorySubtitle},
}

// Classify maps a directory's base name to a Category.
func Classify(dirName string) Category {
	for _, cp := range categoryPatterns {
		if cp.pattern.MatchString(dirName) {
			return cp.category
		}
	}
	return CategoryOther
}

// EmptyDir is one directory found to contain no files.
type EmptyDir struct {
	Path     string   `json:"path"`
	Category Category `json:"category"`
}

// Find walks root and returns every directory that is empty or contains
// only other empty directories, innermost first so a caller deleting in
// the returned order never tries to remove a still-nonempty parent. When
// recursive is false, only root's immediate subdirectories are checked.
func Find(ctx context.Context, root string, recursive bool) ([]EmptyDir, error) {
	if !recursive {
		return findShallow(root)
	}

	isEmpty := make(map[string]bool)
	var order []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		order = append(order, path)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return nil, apperr.Wrap(apperr.IoFailure, "walking directory tree", err)
	}
	if ctx.Err() != nil {
		return nil, apperr.New(apperr.Cancelled, "empty-dir scan cancelled")
	}

	// Evaluate innermost directories first so a parent's emptiness can
	// depend on whether its children were themselves empty.
	sort.Sort(sort.Reverse(byDepth(order)))

	for _, dir := range order {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		empty := true
		for _, e := range entries {
			if e.IsDir() {
				if !isEmpty[filepath.Join(dir, e.Name())] {
					empty = false
					break
				}
				continue
			}
			empty = false
			break
		}
		isEmpty[dir] = empty
	}

	var result []EmptyDir
	for _, dir := range order {
		if dir != root && isEmpty[dir] {
			result = append(result, EmptyDir{Path: dir, Category: Classify(filepath.Base(dir))})
		}
	}
	sort.Slice(result, func(i, j int) bool { return len(result[i].Path) > len(result[j].Path) })
	return result, nil
}

func findShallow(root string) ([]EmptyDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperr.Wrap(apperr.IoFailure, "reading directory", err)
	}
	var result []EmptyDir
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(root, e.Name())
		children, err := os.ReadDir(path)
		if err != nil || len(children) > 0 {
			continue
		}
		result = append(result, EmptyDir{Path: path, Category: Classify(e.Name())})
	}
	return result, nil
}

type byDepth []string

func (b byDepth) Len() int      { return len(b) }
func (b byDepth) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b byDepth) Less(i, j int) bool {
	return strings.Count(b[i], string(filepath.Separator)) < strings.Count(b[j], string(filepath.Separator))
}
