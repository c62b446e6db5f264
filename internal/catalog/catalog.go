// Package catalog resolves MediaFiles against an external metadata
// catalog: parsing a title/year out of a filename, searching a pluggable
// Provider, and writing the matched result back into the store plus an
// NFO sidecar file.
package catalog

import (
	"context"
	"encoding/xml"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/store"
)

// SearchResult is one candidate match returned by a Provider.Search call.
type SearchResult struct {
	CatalogID string
	Title     string
	Year      int
}

// Detail is the full record a Provider returns for one catalog ID.
type Detail struct {
	CatalogID   string
	Title       string
	Year        int
	Plot        string
	Genres      []string
	PosterURL   string
}

// Provider is the injectable external metadata source. Production code
// wires a real implementation talking to a configured catalog service;
// tests use a fake.
type Provider interface {
	Search(ctx context.Context, title string, year int) ([]SearchResult, error)
	FetchDetail(ctx context.Context, catalogID string) (*Detail, error)
}

var titleYearPattern = regexp.MustCompile(`^(.*?)[.\s_(]*((?:19|20)\d{2})\b`)

// ParseTitleYear extracts a best-guess (title, year) pair from a release
// filename, stripping dots/underscores the way scene-release names use
// them as word separators.
func ParseTitleYear(name string) (title string, year int) {
	base := strings.TrimSuffix(name, filepathExt(name))
	cleaned := strings.NewReplacer(".", " ", "_", " ").Replace(base)
	cleaned = strings.TrimSpace(cleaned)

	if m := titleYearPattern.FindStringSubmatch(cleaned); m != nil {
		y, _ := strconv.Atoi(m[2])
		return strings.TrimSpace(m[1]), y
	}
	return cleaned, 0
}

func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// Scraper orchestrates catalog lookups for files in the store, respecting
// a per-second rate limit against the external Provider.
type Scraper struct {
	st       store.Store
	provider Provider
	limiter  *rate.Limiter
}

// New creates a Scraper calling provider at most ratePerSecond times per
// second (a burst of 1).
func New(st store.Store, provider Provider, ratePerSecond float64) *Scraper {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &Scraper{st: st, provider: provider, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1)}
}

// Resolve searches the catalog for file f by its parsed title/year, takes
// the first search result as the match, updates f's CatalogID/Title/Year
// in the store from its detail, and returns that Detail (nil if the
// search returned no candidate). The candidate's title and year are not
// compared with the parsed ones before it is accepted.
func (s *Scraper) Resolve(ctx context.Context, f *model.MediaFile) (*Detail, error) {
	title, year := ParseTitleYear(lastPathElement(f.Path))

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "waiting for rate limiter", err)
	}

	results, err := s.provider.Search(ctx, title, year)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalServiceUnavailable, "searching catalog", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Cancelled, "waiting for rate limiter", err)
	}
	detail, err := s.provider.FetchDetail(ctx, results[0].CatalogID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalServiceUnavailable, "fetching catalog detail", err)
	}

	f.CatalogID = detail.CatalogID
	f.Title = detail.Title
	f.Year = detail.Year
	if err := s.st.UpsertFiles(ctx, []*model.MediaFile{f}); err != nil {
		return detail, err
	}
	return detail, nil
}

func lastPathElement(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// nfoMovie mirrors the Kodi/Jellyfin `movie` NFO schema.
type nfoMovie struct {
	XMLName xml.Name `xml:"movie"`
	Title   string   `xml:"title"`
	Year    int      `xml:"year"`
	Plot    string   `xml:"plot"`
	Genre   []string `xml:"genre"`
}

// WriteNFO writes detail as a Kodi/Jellyfin-compatible NFO sidecar at path.
func WriteNFO(path string, detail *Detail) error {
	doc := nfoMovie{Title: detail.Title, Year: detail.Year, Plot: detail.Plot, Genre: detail.Genres}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshaling nfo", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.IoFailure, "writing nfo file", err)
	}
	return nil
}
