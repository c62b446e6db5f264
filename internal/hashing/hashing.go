// Package hashing computes content-identity digests for files: a fast
// xxhash64 digest for cheap comparison and a strong MD5 digest for
// collision-resistant identity, both in one streaming read pass. Results
// are cached by (path, size, mtime) and concurrent requests for the same
// file are coalesced with singleflight.
package hashing

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/store"
)

// Result holds both digests for a file.
type Result struct {
	FastHash   string
	StrongHash string
}

// Engine computes and caches file hashes.
type Engine struct {
	st        store.Store
	chunkSize int
	group     singleflight.Group
}

// New creates an Engine reading in chunks of chunkSize bytes (4 MiB if <= 0).
func New(st store.Store, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = 4 << 20
	}
	return &Engine{st: st, chunkSize: chunkSize}
}

// Hash returns the (fast, strong) digests for path, using the cache when
// the file's (size, mtime) signature still matches, and coalescing
// concurrent callers requesting the same path.
func (e *Engine) Hash(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.IoFailure, "stat for hashing", err)
	}

	if cached, err := e.st.GetHashCache(ctx, path, info.Size()); err == nil {
		if cached.ModTime.Equal(info.ModTime()) {
			return Result{FastHash: cached.FastHash, StrongHash: cached.StrongHash}, nil
		}
	}

	v, err, _ := e.group.Do(path, func() (any, error) {
		return e.computeAndCache(ctx, path, info)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Engine) computeAndCache(ctx context.Context, path string, info os.FileInfo) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.IoFailure, "opening file for hashing", err)
	}
	defer f.Close()

	fastHasher := xxhash.New()
	strongHasher := md5.New()
	buf := make([]byte, e.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, apperr.Wrap(apperr.Cancelled, "hashing cancelled", err)
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			fastHasher.Write(buf[:n])
			strongHasher.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, apperr.Wrap(apperr.IoFailure, "reading file for hashing", readErr)
		}
	}

	res := Result{
		FastHash:   hex.EncodeToString(fastHasher.Sum(nil)),
		StrongHash: hex.EncodeToString(strongHasher.Sum(nil)),
	}

	entry := &model.HashCacheEntry{
		Path: path, Size: info.Size(), ModTime: info.ModTime(),
		FastHash: res.FastHash, StrongHash: res.StrongHash, ComputedAt: time.Now(),
	}
	if err := e.st.PutHashCache(ctx, entry); err != nil {
		return res, apperr.Wrap(apperr.DatabaseFailure, "caching hash result", err)
	}
	return res, nil
}
