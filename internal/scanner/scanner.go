// Package scanner walks a media root, classifies each file, and batches
// the results into the Persistent Store, recording a ScanHistoryEntry for
// every run. Progress is throttled and reported through a ProgressFunc
// callback, which the API layer forwards to a tasks.Run so a scan can be
// driven by the Task Registry.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/quality"
	"github.com/gwlsn/mediavault/internal/store"
	"github.com/gwlsn/mediavault/internal/videoprobe"
)

// ProgressFunc is invoked periodically (at most every reportInterval)
// during a scan with the number of files seen so far and the path
// currently being processed.
type ProgressFunc func(filesSeen int, currentFile string)

const (
	batchSize      = 500
	reportInterval = 500 * time.Millisecond
)

var videoExt = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".m4v": true, ".ts": true, ".webm": true, ".flv": true,
}

var audioExt = map[string]bool{
	".mp3": true, ".flac": true, ".aac": true, ".m4a": true, ".ogg": true, ".wav": true,
}

var subtitleExt = map[string]bool{
	".srt": true, ".ass": true, ".ssa": true, ".sub": true, ".vtt": true,
}

var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// Classify maps a filename's extension to a FileType.
func Classify(name string) model.FileType {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case videoExt[ext]:
		return model.FileTypeVideo
	case audioExt[ext]:
		return model.FileTypeAudio
	case subtitleExt[ext]:
		return model.FileTypeSubtitle
	case imageExt[ext]:
		return model.FileTypeImage
	default:
		return model.FileTypeOther
	}
}

// Scanner walks a root directory and indexes its files.
type Scanner struct {
	st     store.Store
	prober videoprobe.Prober
}

// New creates a Scanner writing into st. If prober is non-nil, video
// files are probed inline during the walk and given a quality score;
// this is the "optionally enqueues a Probe call" path for video entries.
func New(st store.Store, prober videoprobe.Prober) *Scanner {
	return &Scanner{st: st, prober: prober}
}

// Scan walks root, classifying and upserting every regular file it finds,
// skipping hidden entries and already-visited directories (guarding
// against symlink cycles via a visited-inode set). It records one
// ScanHistoryEntry describing the run.
func (s *Scanner) Scan(ctx context.Context, root string, onProgress ProgressFunc) (*model.ScanHistoryEntry, error) {
	entry := &model.ScanHistoryEntry{
		ID:        uuid.New(),
		RootPath:  root,
		StartedAt: time.Now(),
	}

	visited := make(map[visitKey]bool)
	var visitedMu sync.Mutex

	var (
		mu          sync.Mutex
		batch       []*model.MediaFile
		lastReport  time.Time
		filesSeen   int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.st.UpsertFiles(ctx, batch); err != nil {
			return err
		}
		entry.FilesAdded += len(batch)
		batch = batch[:0]
		return nil
	}

	conf := fastwalk.Config{Follow: true}
	walkErr := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			mu.Lock()
			entry.Errors++
			mu.Unlock()
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			key, ok := inodeKey(info)
			if ok {
				visitedMu.Lock()
				if visited[key] {
					visitedMu.Unlock()
					return filepath.SkipDir
				}
				visited[key] = true
				visitedMu.Unlock()
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			mu.Lock()
			entry.Errors++
			mu.Unlock()
			return nil
		}

		now := time.Now()
		mf := &model.MediaFile{
			ID:        uuid.New(),
			Path:      path,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			FileType:  Classify(d.Name()),
			FirstSeen: now,
			LastSeen:  now,
		}

		if s.prober != nil && mf.FileType == model.FileTypeVideo && mf.Size > 0 {
			if vi, err := s.prober.Probe(ctx, path); err == nil {
				mf.Video = vi
				mf.Quality = quality.Score(vi, quality.DefaultWeights())
			}
		}

		mu.Lock()
		batch = append(batch, mf)
		filesSeen++
		seen := filesSeen
		var flushErr error
		if len(batch) >= batchSize {
			flushErr = flush()
		}
		if onProgress != nil && (lastReport.IsZero() || time.Since(lastReport) >= reportInterval) {
			lastReport = time.Now()
			onProgress(seen, path)
		}
		mu.Unlock()

		return flushErr
	})

	mu.Lock()
	flushErr := flush()
	mu.Unlock()

	entry.FinishedAt = time.Now()
	entry.FilesSeen = filesSeen

	if err := s.st.RecordScanHistory(ctx, entry); err != nil {
		return entry, apperr.Wrap(apperr.DatabaseFailure, "recording scan history", err)
	}

	if walkErr != nil && ctx.Err() == nil {
		return entry, apperr.Wrap(apperr.IoFailure, "walking media root", walkErr)
	}
	if flushErr != nil {
		return entry, flushErr
	}
	if ctx.Err() != nil {
		return entry, apperr.New(apperr.Cancelled, "scan cancelled")
	}
	return entry, nil
}

type visitKey struct {
	dev, ino uint64
}
