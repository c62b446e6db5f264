package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// SQLiteStore persists the catalog in a single SQLite file under WAL.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// runs any pending goose migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "opening database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer avoids SQLITE_BUSY under WAL

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "setting migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "running migrations", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertFiles writes files in batches of 500 per transaction, matching
// the engine's batched-ingest contract.
func (s *SQLiteStore) UpsertFiles(ctx context.Context, files []*model.MediaFile) error {
	const batchSize = 500
	s.mu.Lock()
	defer s.mu.Unlock()

	for start := 0; start < len(files); start += batchSize {
		end := start + batchSize
		if end > len(files) {
			end = len(files)
		}
		if err := s.upsertBatch(ctx, files[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) upsertBatch(ctx context.Context, batch []*model.MediaFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "beginning transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (id, path, size, mod_time, file_type, fast_hash, strong_hash,
			catalog_id, title, year, quality, video_json, ignored, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size=excluded.size, mod_time=excluded.mod_time, file_type=excluded.file_type,
			fast_hash=excluded.fast_hash, strong_hash=excluded.strong_hash,
			catalog_id=excluded.catalog_id, title=excluded.title, year=excluded.year,
			quality=excluded.quality, video_json=excluded.video_json, last_seen=excluded.last_seen
	`)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "preparing upsert", err)
	}
	defer stmt.Close()

	for _, f := range batch {
		videoJSON, err := marshalVideo(f.Video)
		if err != nil {
			return apperr.Wrap(apperr.Internal, "marshaling video info", err)
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, f.ID.String(), f.Path, f.Size, f.ModTime.Format(timeLayout),
			string(f.FileType), nullString(f.FastHash), nullString(f.StrongHash),
			nullString(f.CatalogID), nullString(f.Title), nullInt(f.Year), nullFloat(f.Quality),
			videoJSON, boolToInt(f.Ignored), f.FirstSeen.Format(timeLayout), f.LastSeen.Format(timeLayout)); err != nil {
			return apperr.Wrap(apperr.DatabaseFailure, "upserting file", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "committing transaction", err)
	}
	return nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, id uuid.UUID) (*model.MediaFile, error) {
	row := s.db.QueryRowContext(ctx, fileSelectCols+` WHERE id = ?`, id.String())
	return scanFile(row)
}

func (s *SQLiteStore) GetFileByPath(ctx context.Context, path string) (*model.MediaFile, error) {
	row := s.db.QueryRowContext(ctx, fileSelectCols+` WHERE path = ?`, path)
	return scanFile(row)
}

func filterClause(filter ListFilter) (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	if filter.FileType != "" {
		clause += ` AND file_type = ?`
		args = append(args, string(filter.FileType))
	}
	if filter.PathUnder != "" {
		clause += ` AND path LIKE ?`
		args = append(args, filter.PathUnder+"%")
	}
	if filter.Ignored != nil {
		clause += ` AND ignored = ?`
		args = append(args, boolToInt(*filter.Ignored))
	}
	return clause, args
}

func (s *SQLiteStore) ListFiles(ctx context.Context, filter ListFilter, page Page) ([]*model.MediaFile, error) {
	clause, args := filterClause(filter)
	query := fileSelectCols + clause + ` ORDER BY path`
	if page.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.Limit, page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "listing files", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// CountFiles returns the total number of files matching filter, ignoring
// paging, so callers can report a page against the true result size.
func (s *SQLiteStore) CountFiles(ctx context.Context, filter ListFilter) (int, error) {
	clause, args := filterClause(filter)
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`+clause, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.DatabaseFailure, "counting files", err)
	}
	return count, nil
}

func (s *SQLiteStore) ListFilesByStrongHash(ctx context.Context, hash string) ([]*model.MediaFile, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectCols+` WHERE strong_hash = ? ORDER BY path`, hash)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "listing by strong hash", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (s *SQLiteStore) ListFilesByCatalogID(ctx context.Context, catalogID string) ([]*model.MediaFile, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectCols+` WHERE catalog_id = ? ORDER BY path`, catalogID)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "listing by catalog id", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id.String())
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "deleting file", err)
	}
	return requireRowsAffected(res, id.String())
}

func (s *SQLiteStore) UpdateIgnored(ctx context.Context, id uuid.UUID, ignored bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET ignored = ? WHERE id = ?`, boolToInt(ignored), id.String())
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "updating ignored flag", err)
	}
	return requireRowsAffected(res, id.String())
}

const fileSelectCols = `SELECT id, path, size, mod_time, file_type, fast_hash, strong_hash,
	catalog_id, title, year, quality, video_json, ignored, first_seen, last_seen FROM files`

func requireRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "checking rows affected", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "no row with id "+id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.MediaFile, error) {
	var (
		f                                       model.MediaFile
		idStr, modTimeStr, firstSeenStr, lastSeenStr string
		fastHash, strongHash, catalogID, title, videoJSON sql.NullString
		year                                    sql.NullInt64
		quality                                 sql.NullFloat64
		ignoredInt                              int
	)
	err := row.Scan(&idStr, &f.Path, &f.Size, &modTimeStr, &f.FileType, &fastHash, &strongHash,
		&catalogID, &title, &year, &quality, &videoJSON, &ignoredInt, &firstSeenStr, &lastSeenStr)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "file not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "scanning file row", err)
	}

	f.ID = uuid.MustParse(idStr)
	f.ModTime = parseTime(modTimeStr)
	f.FirstSeen = parseTime(firstSeenStr)
	f.LastSeen = parseTime(lastSeenStr)
	f.FastHash = fastHash.String
	f.StrongHash = strongHash.String
	f.CatalogID = catalogID.String
	f.Title = title.String
	if year.Valid {
		f.Year = int(year.Int64)
	}
	f.Quality = quality.Float64
	f.Ignored = ignoredInt != 0
	if videoJSON.Valid && videoJSON.String != "" {
		var vi model.VideoInfo
		if err := json.Unmarshal([]byte(videoJSON.String), &vi); err == nil {
			f.Video = &vi
		}
	}
	return &f, nil
}

func scanFiles(rows *sql.Rows) ([]*model.MediaFile, error) {
	var out []*model.MediaFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "iterating file rows", err)
	}
	return out, nil
}

func marshalVideo(v *model.VideoInfo) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *SQLiteStore) RecordScanHistory(ctx context.Context, e *model.ScanHistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_history (id, root_path, started_at, finished_at, files_seen, files_added, files_updated, files_removed, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.RootPath, e.StartedAt.Format(timeLayout), e.FinishedAt.Format(timeLayout),
		e.FilesSeen, e.FilesAdded, e.FilesUpdated, e.FilesRemoved, e.Errors)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "recording scan history", err)
	}
	return nil
}

func (s *SQLiteStore) ReadScanHistory(ctx context.Context, limit int) ([]*model.ScanHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root_path, started_at, finished_at, files_seen, files_added, files_updated, files_removed, errors
		FROM scan_history ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "reading scan history", err)
	}
	defer rows.Close()

	var out []*model.ScanHistoryEntry
	for rows.Next() {
		var e model.ScanHistoryEntry
		var idStr, startedStr, finishedStr string
		if err := rows.Scan(&idStr, &e.RootPath, &startedStr, &finishedStr, &e.FilesSeen, &e.FilesAdded, &e.FilesUpdated, &e.FilesRemoved, &e.Errors); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseFailure, "scanning scan history row", err)
		}
		e.ID = uuid.MustParse(idStr)
		e.StartedAt = parseTime(startedStr)
		e.FinishedAt = parseTime(finishedStr)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendOperationLog(ctx context.Context, e *model.OperationLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_log (id, kind, src_path, dst_path, timestamp, undone)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.Kind), e.SrcPath, nullString(e.DstPath), e.Timestamp.Format(timeLayout), boolToInt(e.Undone))
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "appending operation log", err)
	}
	return nil
}

func (s *SQLiteStore) MarkLogUndone(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE operation_log SET undone = 1 WHERE id = ?`, id.String())
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "marking log undone", err)
	}
	return requireRowsAffected(res, id.String())
}

func (s *SQLiteStore) GetOperationLog(ctx context.Context, id uuid.UUID) (*model.OperationLogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, src_path, dst_path, timestamp, undone FROM operation_log WHERE id = ?`, id.String())
	return scanOperationLog(row)
}

func (s *SQLiteStore) ListOperationLog(ctx context.Context, limit int) ([]*model.OperationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, src_path, dst_path, timestamp, undone FROM operation_log
		ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "listing operation log", err)
	}
	defer rows.Close()

	var out []*model.OperationLogEntry
	for rows.Next() {
		e, err := scanOperationLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanOperationLog(row rowScanner) (*model.OperationLogEntry, error) {
	var e model.OperationLogEntry
	var idStr, kindStr, tsStr string
	var dst sql.NullString
	var undoneInt int
	err := row.Scan(&idStr, &kindStr, &e.SrcPath, &dst, &tsStr, &undoneInt)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "operation log entry not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "scanning operation log row", err)
	}
	e.ID = uuid.MustParse(idStr)
	e.Kind = model.OperationKind(kindStr)
	e.DstPath = dst.String
	e.Timestamp = parseTime(tsStr)
	e.Undone = undoneInt != 0
	return &e, nil
}

func (s *SQLiteStore) InsertTrash(ctx context.Context, t *model.TrashItem) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trash (id, original_path, trash_path, size, deleted_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID.String(), t.OriginalPath, t.TrashPath, t.Size, t.DeletedAt.Format(timeLayout))
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "inserting trash item", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveTrash(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trash WHERE id = ?`, id.String())
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "removing trash item", err)
	}
	return requireRowsAffected(res, id.String())
}

func (s *SQLiteStore) GetTrash(ctx context.Context, id uuid.UUID) (*model.TrashItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, original_path, trash_path, size, deleted_at FROM trash WHERE id = ?`, id.String())
	return scanTrash(row)
}

func (s *SQLiteStore) ListTrash(ctx context.Context) ([]*model.TrashItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, original_path, trash_path, size, deleted_at FROM trash ORDER BY deleted_at`)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "listing trash", err)
	}
	defer rows.Close()

	var out []*model.TrashItem
	for rows.Next() {
		t, err := scanTrash(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrash(row rowScanner) (*model.TrashItem, error) {
	var t model.TrashItem
	var idStr, deletedStr string
	err := row.Scan(&idStr, &t.OriginalPath, &t.TrashPath, &t.Size, &deletedStr)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "trash item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "scanning trash row", err)
	}
	t.ID = uuid.MustParse(idStr)
	t.DeletedAt = parseTime(deletedStr)
	return &t, nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.DatabaseFailure, "getting setting", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "putting setting", err)
	}
	return nil
}

func (s *SQLiteStore) GetHashCache(ctx context.Context, path string, size int64) (*model.HashCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, size, mod_time, fast_hash, strong_hash, computed_at
		FROM hash_cache WHERE path = ? AND size = ?`, path, size)

	var e model.HashCacheEntry
	var modStr, computedStr string
	err := row.Scan(&e.Path, &e.Size, &modStr, &e.FastHash, &e.StrongHash, &computedStr)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "hash cache miss")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseFailure, "getting hash cache entry", err)
	}
	e.ModTime = parseTime(modStr)
	e.ComputedAt = parseTime(computedStr)
	return &e, nil
}

func (s *SQLiteStore) PutHashCache(ctx context.Context, e *model.HashCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hash_cache (path, size, mod_time, fast_hash, strong_hash, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size=excluded.size, mod_time=excluded.mod_time, fast_hash=excluded.fast_hash,
			strong_hash=excluded.strong_hash, computed_at=excluded.computed_at`,
		e.Path, e.Size, e.ModTime.Format(timeLayout), e.FastHash, e.StrongHash, e.ComputedAt.Format(timeLayout))
	if err != nil {
		return apperr.Wrap(apperr.DatabaseFailure, "putting hash cache entry", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`)
	if err := row.Scan(&stats.TotalFiles, &stats.TotalBytes); err != nil {
		return Stats{}, apperr.Wrap(apperr.DatabaseFailure, "computing stats", err)
	}
	return stats, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

