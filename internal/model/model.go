// Package model holds the plain data types shared across the media
// library engine: catalog entries, scan bookkeeping, trash/undo records,
// and task snapshots.
package model

import (
	"time"

	"github.com/google/uuid"
)

// FileType classifies a MediaFile's broad content category.
type FileType string

const (
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeSubtitle FileType = "subtitle"
	FileTypeImage    FileType = "image"
	FileTypeOther    FileType = "other"
)

// MediaFile is one indexed file on disk.
type MediaFile struct {
	ID         uuid.UUID `json:"id"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	FileType   FileType  `json:"file_type"`
	FastHash   string     `json:"fast_hash,omitempty"`
	StrongHash string     `json:"strong_hash,omitempty"`
	CatalogID  string     `json:"catalog_id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Year       int        `json:"year,omitempty"`
	Quality    float64    `json:"quality,omitempty"`
	Video      *VideoInfo `json:"video,omitempty"`
	Ignored    bool       `json:"ignored"`
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
}

// VideoInfo holds technical metadata for a video file, as returned by a
// videoprobe.Prober.
type VideoInfo struct {
	Duration       float64  `json:"duration_secs"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	VideoCodec     string   `json:"video_codec"`
	Bitrate        int64    `json:"bitrate"`
	FrameRate      float64  `json:"frame_rate"`
	AudioCodecs    []string `json:"audio_codecs"`
	AudioChannels  []int    `json:"audio_channels"`
	SubtitleLangs  []string `json:"subtitle_langs"`
	HasChineseSubs bool     `json:"has_chinese_subs"`
	IsHDR          bool     `json:"is_hdr"`
	IsHDR10Plus    bool     `json:"is_hdr10_plus"`
	IsDolbyVision  bool     `json:"is_dolby_vision"`
	ColorTransfer  string   `json:"color_transfer,omitempty"`
	Source         string   `json:"source,omitempty"` // bluray, web-dl, hdtv, dvd, unknown
}

// ScanHistoryEntry records the outcome of one completed scan run.
type ScanHistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	RootPath     string    `json:"root_path"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FilesSeen    int       `json:"files_seen"`
	FilesAdded   int       `json:"files_added"`
	FilesUpdated int       `json:"files_updated"`
	FilesRemoved int       `json:"files_removed"`
	Errors       int       `json:"errors"`
}

// TrashItem is a file moved to the trash directory pending retention
// expiry or restore.
type TrashItem struct {
	ID           uuid.UUID `json:"id"`
	OriginalPath string    `json:"original_path"`
	TrashPath    string    `json:"trash_path"`
	Size         int64     `json:"size"`
	DeletedAt    time.Time `json:"deleted_at"`
}

// OperationKind is the mutation type recorded in the operation log.
type OperationKind string

const (
	OpRename    OperationKind = "rename"
	OpMove      OperationKind = "move"
	OpCopy      OperationKind = "copy"
	OpTrash     OperationKind = "trash"
	OpRestore   OperationKind = "restore"
	OpDelete    OperationKind = "delete"
)

// OperationLogEntry records one file mutation; rename, move and trash
// entries can be undone, copy, delete and restore entries cannot.
type OperationLogEntry struct {
	ID        uuid.UUID     `json:"id"`
	Kind      OperationKind `json:"kind"`
	SrcPath   string        `json:"src_path"`
	DstPath   string        `json:"dst_path,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Undone    bool          `json:"undone"`
}

// HashCacheEntry is a cached (fast_hash, strong_hash) pair keyed by the
// file's identity signature at the time it was computed.
type HashCacheEntry struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"mod_time"`
	FastHash   string    `json:"fast_hash"`
	StrongHash string    `json:"strong_hash"`
	ComputedAt time.Time `json:"computed_at"`
}

// TaskType enumerates the background operations the registry schedules.
type TaskType string

const (
	TaskScan      TaskType = "scan"
	TaskHash      TaskType = "hash"
	TaskScrape    TaskType = "scrape"
	TaskRename    TaskType = "rename"
	TaskBatchMove TaskType = "batch_move"
	TaskBatchCopy TaskType = "batch_copy"
	TaskCleanup   TaskType = "cleanup"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether a task in this status will not transition
// further on its own.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// TaskInfo is a snapshot of one scheduled or running task, safe to copy
// and serialize.
type TaskInfo struct {
	ID             uuid.UUID      `json:"id"`
	Type           TaskType       `json:"task_type"`
	Status         TaskStatus     `json:"status"`
	Progress       float64        `json:"progress"`
	Message        string         `json:"message,omitempty"`
	CurrentFile    string         `json:"current_file,omitempty"`
	Error          string         `json:"error,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      time.Time      `json:"started_at,omitempty"`
	FinishedAt     time.Time      `json:"finished_at,omitempty"`
	DurationSecs   float64        `json:"duration_secs,omitempty"`
}

// Copy returns a deep-enough copy of t safe for concurrent readers.
func (t *TaskInfo) Copy() *TaskInfo {
	cp := *t
	if t.Result != nil {
		cp.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			cp.Result[k] = v
		}
	}
	return &cp
}
