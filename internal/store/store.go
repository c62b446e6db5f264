// Package store provides the engine's persistent catalog: indexed media
// files, scan history, the reversible operation log, trash bookkeeping,
// free-form settings, and the hash cache.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/model"
)

// ListFilter narrows a ListFiles call.
type ListFilter struct {
	FileType  model.FileType
	PathUnder string
	Ignored   *bool
}

// Page bounds a ListFiles result set.
type Page struct {
	Offset int
	Limit  int
}

// Stats summarizes the current catalog contents.
type Stats struct {
	TotalFiles int   `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}

// Store is the persistence interface every core package depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	UpsertFiles(ctx context.Context, files []*model.MediaFile) error
	GetFile(ctx context.Context, id uuid.UUID) (*model.MediaFile, error)
	GetFileByPath(ctx context.Context, path string) (*model.MediaFile, error)
	ListFiles(ctx context.Context, filter ListFilter, page Page) ([]*model.MediaFile, error)
	CountFiles(ctx context.Context, filter ListFilter) (int, error)
	ListFilesByStrongHash(ctx context.Context, hash string) ([]*model.MediaFile, error)
	ListFilesByCatalogID(ctx context.Context, catalogID string) ([]*model.MediaFile, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	UpdateIgnored(ctx context.Context, id uuid.UUID, ignored bool) error

	RecordScanHistory(ctx context.Context, entry *model.ScanHistoryEntry) error
	ReadScanHistory(ctx context.Context, limit int) ([]*model.ScanHistoryEntry, error)

	AppendOperationLog(ctx context.Context, entry *model.OperationLogEntry) error
	MarkLogUndone(ctx context.Context, id uuid.UUID) error
	ListOperationLog(ctx context.Context, limit int) ([]*model.OperationLogEntry, error)
	GetOperationLog(ctx context.Context, id uuid.UUID) (*model.OperationLogEntry, error)

	InsertTrash(ctx context.Context, item *model.TrashItem) error
	RemoveTrash(ctx context.Context, id uuid.UUID) error
	ListTrash(ctx context.Context) ([]*model.TrashItem, error)
	GetTrash(ctx context.Context, id uuid.UUID) (*model.TrashItem, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error

	GetHashCache(ctx context.Context, path string, size int64) (*model.HashCacheEntry, error)
	PutHashCache(ctx context.Context, entry *model.HashCacheEntry) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
