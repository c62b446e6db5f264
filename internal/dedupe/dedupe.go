// Package dedupe groups MediaFiles that are likely the same content: an
// exact mode keyed by strong hash or catalog ID, and a fuzzy mode based on
// normalized-title similarity for files that were never hashed or
// catalog-matched against each other.
package dedupe

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/store"
)

// GroupFile tags one file in a Group as the recommended keeper or as
// redundant relative to the rest of the group.
type GroupFile struct {
	*model.MediaFile
	Status string `json:"status"`
}

// Group is a set of files believed to be duplicates of one another,
// ordered by quality_score descending, then size descending, then path
// ascending; the first file is the recommended keep, the rest redundant.
type Group struct {
	Hash        string      `json:"hash"`
	Files       []GroupFile `json:"files"`
	TotalSize   int64       `json:"total_size"`
	WastedSpace int64       `json:"wasted_space"`
}

const (
	statusKeep      = "recommended keep"
	statusRedundant = "redundant"
)

// buildGroup orders files by the documented tie-break chain, tags the
// first as the keeper, and sums size and wasted space for the rest.
func buildGroup(key string, files []*model.MediaFile) Group {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Quality != files[j].Quality {
			return files[i].Quality > files[j].Quality
		}
		if files[i].Size != files[j].Size {
			return files[i].Size > files[j].Size
		}
		return files[i].Path < files[j].Path
	})

	group := Group{Hash: key, Files: make([]GroupFile, len(files))}
	for i, f := range files {
		group.TotalSize += f.Size
		status := statusRedundant
		if i == 0 {
			status = statusKeep
		} else {
			group.WastedSpace += f.Size
		}
		group.Files[i] = GroupFile{MediaFile: f, Status: status}
	}
	return group
}

// MovieGroup is every indexed file sharing a catalog ID, for surfacing
// which cataloged movies have more than one copy on disk.
type MovieGroup struct {
	CatalogID string             `json:"tmdb_id"`
	Title     string             `json:"title"`
	Files     []*model.MediaFile `json:"files"`
}

// GroupByCatalog groups files by non-empty CatalogID, regardless of group
// size, so a caller can see every cataloged title's copies on disk
// rather than only the duplicated ones.
func (e *Engine) GroupByCatalog(ctx context.Context, filter store.ListFilter) ([]MovieGroup, error) {
	files, err := e.st.ListFiles(ctx, filter, store.Page{})
	if err != nil {
		return nil, err
	}

	byCatalog := make(map[string][]*model.MediaFile)
	var order []string
	for _, f := range files {
		if f.Ignored || f.CatalogID == "" {
			continue
		}
		if _, seen := byCatalog[f.CatalogID]; !seen {
			order = append(order, f.CatalogID)
		}
		byCatalog[f.CatalogID] = append(byCatalog[f.CatalogID], f)
	}

	groups := make([]MovieGroup, 0, len(order))
	for _, id := range order {
		fs := byCatalog[id]
		groups = append(groups, MovieGroup{CatalogID: id, Title: fs[0].Title, Files: fs})
	}
	return groups, nil
}

// Engine finds duplicate groups in the catalog.
type Engine struct {
	st store.Store
}

// New creates a duplicate Engine reading from st.
func New(st store.Store) *Engine {
	return &Engine{st: st}
}

// FindExact groups files sharing a non-empty strong hash or catalog ID.
// This is the high-confidence mode: both keys identify the same bytes or
// the same cataloged title, so any false positive would require a hash
// collision or a scraper mismatch.
func (e *Engine) FindExact(ctx context.Context, filter store.ListFilter) ([]Group, error) {
	files, err := e.st.ListFiles(ctx, filter, store.Page{})
	if err != nil {
		return nil, err
	}

	byHash := make(map[string][]*model.MediaFile)
	byCatalog := make(map[string][]*model.MediaFile)
	for _, f := range files {
		if f.Ignored {
			continue
		}
		if f.StrongHash != "" {
			byHash[f.StrongHash] = append(byHash[f.StrongHash], f)
		}
		if f.CatalogID != "" {
			byCatalog[f.CatalogID] = append(byCatalog[f.CatalogID], f)
		}
	}

	var groups []Group
	for hash, fs := range byHash {
		if len(fs) > 1 {
			groups = append(groups, buildGroup("hash:"+hash, fs))
		}
	}
	for id, fs := range byCatalog {
		if len(fs) > 1 {
			groups = append(groups, buildGroup("catalog:"+id, fs))
		}
	}
	return groups, nil
}

// FindFuzzy groups files whose normalized-title similarity is at least
// threshold (0..1), using string similarity rather than exact
// identity. Candidates are blocked by the first three tokens of their
// normalized name to keep the comparison near-linear instead of
// quadratic across the whole catalog, then merged transitively with
// union-find so a chain of pairwise-similar names ends up in one group
// rather than being split by which pair happened to be compared first.
func (e *Engine) FindFuzzy(ctx context.Context, filter store.ListFilter, threshold float64) ([]Group, error) {
	files, err := e.st.ListFiles(ctx, filter, store.Page{})
	if err != nil {
		return nil, err
	}

	var candidates []*model.MediaFile
	for _, f := range files {
		if !f.Ignored {
			candidates = append(candidates, f)
		}
	}

	buckets := make(map[string][]int)
	normalized := make([]string, len(candidates))
	for i, f := range candidates {
		normalized[i] = normalizeTitle(f.Title, f.Path)
		key := blockKey(normalized[i])
		buckets[key] = append(buckets[key], i)
	}

	uf := newUnionFind(len(candidates))
	for _, idxs := range buckets {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				a, b := idxs[i], idxs[j]
				sim, err := edlib.StringsSimilarity(normalized[a], normalized[b], edlib.Levenshtein)
				if err != nil {
					continue
				}
				if float64(sim) >= threshold {
					uf.union(a, b)
				}
			}
		}
	}

	members := make(map[int][]int)
	for i := range candidates {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []Group
	for root, idxs := range members {
		if len(idxs) < 2 {
			continue
		}
		fs := make([]*model.MediaFile, len(idxs))
		for i, idx := range idxs {
			fs[i] = candidates[idx]
		}
		groups = append(groups, buildGroup("fuzzy:"+normalized[root], fs))
	}
	return groups, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// episodeToken, qualityToken, and sourceToken match the release-naming
// noise the normalized-name grammar strips before comparison, applied
// after punctuation has already been collapsed to spaces so a token can
// span what was originally a run of dots, dashes, or brackets.
var (
	episodeToken = regexp.MustCompile(`\bs\d{1,2}e\d{1,3}\b|\b\d{1,2}x\d{1,3}\b|\bseason ?\d{1,2}\b|\bepisode ?\d{1,3}\b`)
	qualityToken = regexp.MustCompile(`\b(2160p|1080p|720p|480p|360p|4k|8k|uhd|hdr10\+?|hdr|sdr|dolby ?vision|dv)\b`)
	sourceToken  = regexp.MustCompile(`\bblu ?ray\b|\bbdrip\b|\bweb ?dl\b|\bwebrip\b|\bhdtv\b|\bdvdrip\b|\bdvd\b|\bhdcam\b|\bcam\b|\bremux\b`)
)

// normalizeTitle lowercases the title (or filename, extension stripped,
// when no title is known) and strips episode/quality/source release
// tokens and punctuation, so "The.Matrix.1999.1080p.BluRay" and
// "The Matrix (1999)" compare equal.
func normalizeTitle(title, path string) string {
	src := title
	if src == "" {
		base := filepath.Base(path)
		src = strings.TrimSuffix(base, filepath.Ext(base))
	}
	lower := strings.ToLower(src)
	spaced := nonAlnum.ReplaceAllString(lower, " ")
	spaced = episodeToken.ReplaceAllString(spaced, " ")
	spaced = qualityToken.ReplaceAllString(spaced, " ")
	spaced = sourceToken.ReplaceAllString(spaced, " ")
	return strings.Join(strings.Fields(spaced), " ")
}

func blockKey(normalized string) string {
	tokens := strings.Fields(normalized)
	n := 3
	if len(tokens) < n {
		n = len(tokens)
	}
	return strings.Join(tokens[:n], " ")
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
