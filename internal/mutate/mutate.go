// Package mutate performs the engine's file mutations — rename, move,
// copy, trash, restore, delete — each appended to the operation log so
// the Undo Engine can invert it later. All filesystem access goes through
// an afero.Fs, so the package is exercised against an in-memory
// filesystem in tests and a real one (afero.NewOsFs()) in production.
package mutate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/store"
)

// Mutator performs file operations against fs, logging each to st.
type Mutator struct {
	fs        afero.Fs
	st        store.Store
	trashDir  string
	chunkSize int
}

// New creates a Mutator. trashDir is where Trash moves files; chunkSize
// bounds the buffer used by Copy (4 MiB if <= 0).
func New(fs afero.Fs, st store.Store, trashDir string, chunkSize int) *Mutator {
	if chunkSize <= 0 {
		chunkSize = 4 << 20
	}
	return &Mutator{fs: fs, st: st, trashDir: trashDir, chunkSize: chunkSize}
}

func (m *Mutator) log(ctx context.Context, kind model.OperationKind, src, dst string) error {
	return m.st.AppendOperationLog(ctx, &model.OperationLogEntry{
		ID: uuid.New(), Kind: kind, SrcPath: src, DstPath: dst, Timestamp: time.Now(),
	})
}

// Rename moves src to dst within the same directory tree via afero's
// Rename (an atomic os.Rename on a real filesystem). If dst already
// exists, a " (1)" counter is inserted before the extension, incrementing
// until a free name is found, rather than silently overwriting it.
func (m *Mutator) Rename(ctx context.Context, src, dst string) (string, error) {
	dst = m.uniquify(dst)
	if err := m.fs.Rename(src, dst); err != nil {
		return "", apperr.Wrap(apperr.IoFailure, "renaming file", err)
	}
	return dst, m.log(ctx, model.OpRename, src, dst)
}

// uniquify returns dst unchanged if nothing occupies it, otherwise
// appends " (N)" before the extension for the smallest N that is free.
func (m *Mutator) uniquify(dst string) string {
	if _, err := m.fs.Stat(dst); err != nil {
		return dst
	}
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := m.fs.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// Move relocates src to dst, falling back to copy-then-delete when dst is
// on a different filesystem (afero.Rename returning an error is treated
// as a cross-device case, matching a plain os.Rename's EXDEV behavior).
func (m *Mutator) Move(ctx context.Context, src, dst string) error {
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrap(apperr.IoFailure, "creating destination directory", err)
	}
	if err := m.fs.Rename(src, dst); err == nil {
		return m.log(ctx, model.OpMove, src, dst)
	}
	if err := m.copyFile(ctx, src, dst); err != nil {
		return err
	}
	if err := m.fs.Remove(src); err != nil {
		return apperr.Wrap(apperr.IoFailure, "removing source after copy", err)
	}
	return m.log(ctx, model.OpMove, src, dst)
}

// Copy duplicates src to dst, streaming through chunkSize buffers.
func (m *Mutator) Copy(ctx context.Context, src, dst string) error {
	if err := m.copyFile(ctx, src, dst); err != nil {
		return err
	}
	return m.log(ctx, model.OpCopy, src, dst)
}

func (m *Mutator) copyFile(ctx context.Context, src, dst string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return apperr.Wrap(apperr.IoFailure, "opening source file", err)
	}
	defer in.Close()

	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrap(apperr.IoFailure, "creating destination directory", err)
	}
	out, err := m.fs.Create(dst)
	if err != nil {
		return apperr.Wrap(apperr.IoFailure, "creating destination file", err)
	}
	defer out.Close()

	buf := make([]byte, m.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return apperr.Wrap(apperr.Cancelled, "copy cancelled", err)
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return apperr.Wrap(apperr.IoFailure, "writing destination file", writeErr)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return apperr.Wrap(apperr.IoFailure, "reading source file", readErr)
		}
	}
}

// Trash moves path into the trash directory and records a TrashItem.
func (m *Mutator) Trash(ctx context.Context, path string) (*model.TrashItem, error) {
	info, err := m.fs.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.IoFailure, "stat before trashing", err)
	}

	trashPath := filepath.Join(m.trashDir, uuid.NewString()+"_"+filepath.Base(path))
	if err := m.fs.MkdirAll(m.trashDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.IoFailure, "creating trash directory", err)
	}
	if err := m.fs.Rename(path, trashPath); err != nil {
		return nil, apperr.Wrap(apperr.IoFailure, "moving file to trash", err)
	}

	item := &model.TrashItem{
		ID: uuid.New(), OriginalPath: path, TrashPath: trashPath,
		Size: info.Size(), DeletedAt: time.Now(),
	}
	if err := m.st.InsertTrash(ctx, item); err != nil {
		return nil, err
	}
	if err := m.log(ctx, model.OpTrash, path, trashPath); err != nil {
		return item, err
	}
	return item, nil
}

// Restore moves a trashed item back to its original path.
func (m *Mutator) Restore(ctx context.Context, itemID uuid.UUID) error {
	item, err := m.st.GetTrash(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := m.fs.Stat(item.OriginalPath); err == nil {
		return apperr.New(apperr.Conflict, "restore target occupied: "+item.OriginalPath)
	}
	if err := m.fs.MkdirAll(filepath.Dir(item.OriginalPath), 0o755); err != nil {
		return apperr.Wrap(apperr.IoFailure, "creating restore directory", err)
	}
	if err := m.fs.Rename(item.TrashPath, item.OriginalPath); err != nil {
		return apperr.Wrap(apperr.IoFailure, "restoring file from trash", err)
	}
	if err := m.st.RemoveTrash(ctx, itemID); err != nil {
		return err
	}
	return m.log(ctx, model.OpRestore, item.TrashPath, item.OriginalPath)
}

// Delete permanently removes path (no trash, no undo).
func (m *Mutator) Delete(ctx context.Context, path string) error {
	if err := m.fs.Remove(path); err != nil {
		return apperr.Wrap(apperr.IoFailure, "deleting file", err)
	}
	return m.log(ctx, model.OpDelete, path, "")
}

// TemplateFields supplies the values substitutable into a rename
// template: {title}, {year}, {season:02d}, {episode:02d}, {ext}.
type TemplateFields struct {
	Title   string
	Year    int
	Season  int
	Episode int
	Ext     string
}

var templateToken = regexp.MustCompile(`\{(title|year|season(?::0(\d)d)?|episode(?::0(\d)d)?|ext)\}`)

// RenderTemplate expands a rename template against fields. Unknown
// tokens are left as literal text rather than rejected, so templates
// added later don't break older saved ones.
func RenderTemplate(template string, fields TemplateFields) string {
	return templateToken.ReplaceAllStringFunc(template, func(token string) string {
		switch {
		case token == "{title}":
			return fields.Title
		case token == "{year}":
			return strconv.Itoa(fields.Year)
		case token == "{ext}":
			return fields.Ext
		case strings.HasPrefix(token, "{season"):
			return padded(token, fields.Season)
		case strings.HasPrefix(token, "{episode"):
			return padded(token, fields.Episode)
		default:
			return token
		}
	})
}

func padded(token string, value int) string {
	m := regexp.MustCompile(`0(\d)d`).FindStringSubmatch(token)
	if m == nil {
		return strconv.Itoa(value)
	}
	width, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%0*d", width, value)
}

// BulkDeleteResult summarizes a parallel deletion sweep.
type BulkDeleteResult struct {
	Deleted int64
	Failed  int64
	Errors  []error
}

// BulkDelete removes every path in paths using a worker pool sized at
// runtime.NumCPU()*multiplier (4 if multiplier <= 0), tracking live
// progress via atomic counters the way a bulk-deletion sweep needs to
// report throughput without a lock on every file.
func (m *Mutator) BulkDelete(ctx context.Context, paths []string, multiplier int) BulkDeleteResult {
	if multiplier <= 0 {
		multiplier = 4
	}
	workers := runtime.NumCPU() * multiplier
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	var deleted, failed atomic.Int64
	var errsMu sync.Mutex
	var errs []error

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				if ctx.Err() != nil {
					return
				}
				if err := m.Delete(ctx, path); err != nil {
					failed.Add(1)
					errsMu.Lock()
					errs = append(errs, err)
					errsMu.Unlock()
					continue
				}
				deleted.Add(1)
			}
		}()
	}

	for _, p := range paths {
		select {
		case work <- p:
		case <-ctx.Done():
		}
	}
	close(work)
	wg.Wait()

	return BulkDeleteResult{Deleted: deleted.Load(), Failed: failed.Load(), Errors: errs}
}
