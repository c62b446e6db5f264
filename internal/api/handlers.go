package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/catalog"
	"github.com/gwlsn/mediavault/internal/dedupe"
	"github.com/gwlsn/mediavault/internal/emptydirs"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/mutate"
	"github.com/gwlsn/mediavault/internal/store"
	"github.com/gwlsn/mediavault/internal/tasks"
)

func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.UUID{}, apperr.Wrap(apperr.InvalidArgument, "invalid id", err)
	}
	return id, nil
}

// ScanRequest is the body for POST /scan.
type ScanRequest struct {
	Directory string `json:"directory" validate:"required"`
	Recursive bool   `json:"recursive"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, apperr.Wrap(apperr.InvalidArgument, "directory is required", err))
		return
	}

	info := s.registry.Submit(model.TaskScan, func(run *tasks.Run) error {
		_, err := s.scanner.Scan(run.Context(), req.Directory, func(filesSeen int, file string) {
			run.Report(0, file, strconv.Itoa(filesSeen)+" files seen")
		})
		return err
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{}
	if ft := q.Get("file_type"); ft != "" {
		filter.FileType = model.FileType(ft)
	}
	if under := q.Get("path"); under != "" {
		filter.PathUnder = under
	}

	pageNum := 1
	page := store.Page{Limit: 50}
	if p := q.Get("page_size"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page.Limit = n
		}
	}
	if p := q.Get("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			pageNum = n
			page.Offset = (n - 1) * page.Limit
		}
	}

	files, err := s.st.ListFiles(r.Context(), filter, page)
	if err != nil {
		writeErr(w, err)
		return
	}
	total, err := s.st.CountFiles(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": files, "total": total, "page": pageNum, "page_size": page.Limit,
	})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleHashFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	info := s.registry.Submit(model.TaskHash, func(run *tasks.Run) error {
		result, err := s.hasher.Hash(run.Context(), f.Path)
		if err != nil {
			return err
		}
		f.FastHash = result.FastHash
		f.StrongHash = result.StrongHash
		return s.st.UpsertFiles(run.Context(), []*model.MediaFile{f})
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID})
}

// MoveCopyRequest is the body for POST /files/{id}/move and /copy.
type MoveCopyRequest struct {
	Destination string `json:"destination" validate:"required"`
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	s.handleMoveOrCopy(w, r, true)
}

func (s *Server) handleCopyFile(w http.ResponseWriter, r *http.Request) {
	s.handleMoveOrCopy(w, r, false)
}

func (s *Server) handleMoveOrCopy(w http.ResponseWriter, r *http.Request, move bool) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req MoveCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "destination is required"))
		return
	}

	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	if move {
		err = s.mutator.Move(r.Context(), f.Path, req.Destination)
	} else {
		err = s.mutator.Copy(r.Context(), f.Path, req.Destination)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if move {
		f.Path = req.Destination
		if err := s.st.UpsertFiles(r.Context(), []*model.MediaFile{f}); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetNFO(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	nfoPath := nfoPathFor(f.Path)
	writeJSON(w, http.StatusOK, map[string]string{"path": nfoPath})
}

func (s *Server) handleWriteNFO(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	var detail catalog.Detail
	if err := json.NewDecoder(r.Body).Decode(&detail); err != nil {
		writeErr(w, apperr.Wrap(apperr.InvalidArgument, "invalid nfo body", err))
		return
	}
	if err := catalog.WriteNFO(nfoPathFor(f.Path), &detail); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "written"})
}

func nfoPathFor(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return mediaPath[:len(mediaPath)-len(ext)] + ".nfo"
}

// ScrapeRequest is the body for POST /scrape.
type ScrapeRequest struct {
	FileID uuid.UUID `json:"file_id" validate:"required"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}
	f, err := s.st.GetFile(r.Context(), req.FileID)
	if err != nil {
		writeErr(w, err)
		return
	}
	detail, err := s.scraper.Resolve(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	if detail == nil {
		writeJSON(w, http.StatusOK, map[string]any{"metadata": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": detail})
}

// ScrapeBatchRequest is the body for POST /scrape/batch.
type ScrapeBatchRequest struct {
	FileIDs []uuid.UUID `json:"file_ids" validate:"required,min=1"`
}

type scrapeBatchResult struct {
	FileID  uuid.UUID `json:"file_id"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

func (s *Server) handleScrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req ScrapeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "file_ids is required"))
		return
	}

	info := s.registry.Submit(model.TaskScrape, func(run *tasks.Run) error {
		results := make([]scrapeBatchResult, 0, len(req.FileIDs))
		success, failed := 0, 0
		for i, id := range req.FileIDs {
			path := ""
			f, err := s.st.GetFile(run.Context(), id)
			if err == nil {
				path = f.Path
				_, err = s.scraper.Resolve(run.Context(), f)
			}
			res := scrapeBatchResult{FileID: id, Success: err == nil}
			if err != nil {
				res.Error = err.Error()
				failed++
			} else {
				success++
			}
			results = append(results, res)
			run.Report(float64(i+1)/float64(len(req.FileIDs)), path, "")
		}
		run.SetResult(map[string]any{"results": results, "success": success, "failed": failed})
		return nil
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID})
}

// RenameRequest is the body for POST /rename.
type RenameRequest struct {
	FileIDs  []uuid.UUID `json:"file_ids" validate:"required,min=1"`
	Template string      `json:"template" validate:"required"`
	Preview  bool        `json:"preview"`
}

type renamePreviewItem struct {
	FileID  uuid.UUID `json:"file_id"`
	OldName string    `json:"old_name"`
	NewName string    `json:"new_name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "file_ids and template are required"))
		return
	}

	var preview []renamePreviewItem
	for _, id := range req.FileIDs {
		f, err := s.st.GetFile(r.Context(), id)
		if err != nil {
			continue
		}
		ext := filepath.Ext(f.Path)
		oldName := filepath.Base(f.Path)
		newName := mutate.RenderTemplate(req.Template, mutate.TemplateFields{
			Title: f.Title, Year: f.Year, Ext: ext[min(1, len(ext)):],
		})
		preview = append(preview, renamePreviewItem{FileID: id, OldName: oldName, NewName: newName})

		if !req.Preview {
			dest := filepath.Join(filepath.Dir(f.Path), newName)
			if finalDest, err := s.mutator.Rename(r.Context(), f.Path, dest); err == nil {
				f.Path = finalDest
				_ = s.st.UpsertFiles(r.Context(), []*model.MediaFile{f})
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"preview": preview, "message": "ok"})
}

// DedupeRequest is the body for POST /dedupe.
type DedupeRequest struct {
	Mode      string  `json:"mode"` // "exact" or "fuzzy"
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleDedupe(w http.ResponseWriter, r *http.Request) {
	var req DedupeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	var groups []dedupe.Group
	var err error
	if req.Mode == "fuzzy" {
		threshold := req.Threshold
		if threshold <= 0 {
			threshold = s.cfg.FuzzyDedupeThresh
		}
		groups, err = s.dedupe.FindFuzzy(r.Context(), store.ListFilter{}, threshold)
	} else {
		groups, err = s.dedupe.FindExact(r.Context(), store.ListFilter{})
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	var totalDuplicates int
	var totalWastedSpace int64
	for _, g := range groups {
		totalDuplicates += len(g.Files) - 1
		totalWastedSpace += g.WastedSpace
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":             groups,
		"total_duplicates":   totalDuplicates,
		"total_wasted_space": totalWastedSpace,
	})
}

func (s *Server) handleDedupeMovies(w http.ResponseWriter, r *http.Request) {
	groups, err := s.dedupe.GroupByCatalog(r.Context(), store.ListFilter{})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// BatchMoveCopyRequest is the body for POST /files/batch-move and
// /files/batch-copy.
type BatchMoveCopyRequest struct {
	FileIDs        []uuid.UUID `json:"file_ids" validate:"required,min=1"`
	DestinationDir string      `json:"destination_dir" validate:"required"`
}

func (s *Server) handleBatchMove(w http.ResponseWriter, r *http.Request) {
	s.handleBatchMoveOrCopy(w, r, true)
}

func (s *Server) handleBatchCopy(w http.ResponseWriter, r *http.Request) {
	s.handleBatchMoveOrCopy(w, r, false)
}

func (s *Server) handleBatchMoveOrCopy(w http.ResponseWriter, r *http.Request, move bool) {
	var req BatchMoveCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "file_ids and destination_dir are required"))
		return
	}

	taskType := model.TaskBatchCopy
	if move {
		taskType = model.TaskBatchMove
	}

	info := s.registry.Submit(taskType, func(run *tasks.Run) error {
		results := make([]scrapeBatchResult, 0, len(req.FileIDs))
		success, failed := 0, 0
		for i, id := range req.FileIDs {
			path := ""
			f, err := s.st.GetFile(run.Context(), id)
			if err == nil {
				path = f.Path
				dest := filepath.Join(req.DestinationDir, filepath.Base(f.Path))
				if move {
					err = s.mutator.Move(run.Context(), f.Path, dest)
				} else {
					err = s.mutator.Copy(run.Context(), f.Path, dest)
				}
				if err == nil && move {
					f.Path = dest
					path = dest
					err = s.st.UpsertFiles(run.Context(), []*model.MediaFile{f})
				}
			}
			res := scrapeBatchResult{FileID: id, Success: err == nil}
			if err != nil {
				res.Error = err.Error()
				failed++
			} else {
				success++
			}
			results = append(results, res)
			run.Report(float64(i+1)/float64(len(req.FileIDs)), path, "")
		}
		run.SetResult(map[string]any{"results": results, "success": success, "failed": failed})
		return nil
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": info.ID})
}

func (s *Server) handleListEmptyDirs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	root := q.Get("directory")
	if root == "" {
		root = s.cfg.MediaPath
	}
	category := q.Get("category")
	recursive := q.Get("recursive") != "false"

	dirs, err := emptydirs.Find(r.Context(), root, recursive)
	if err != nil {
		writeErr(w, err)
		return
	}
	if category != "" {
		filtered := dirs[:0]
		for _, d := range dirs {
			if string(d.Category) == category {
				filtered = append(filtered, d)
			}
		}
		dirs = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"dirs": dirs, "total": len(dirs)})
}

// DeleteEmptyDirsRequest is the body for POST /empty-dirs/delete.
type DeleteEmptyDirsRequest struct {
	Dirs []string `json:"dirs" validate:"required,min=1"`
}

func (s *Server) handleDeleteEmptyDirs(w http.ResponseWriter, r *http.Request) {
	var req DeleteEmptyDirsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "dirs is required"))
		return
	}
	result := s.mutator.BulkDelete(r.Context(), req.Dirs, 0)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": result.Deleted, "failed": result.Failed})
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	items, err := s.st.ListTrash(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleTrashFile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	f, err := s.st.GetFile(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	item, err := s.mutator.Trash(r.Context(), f.Path)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRestoreTrash(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.mutator.Restore(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handleDeleteTrashed(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	item, err := s.st.GetTrash(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.mutator.Delete(r.Context(), item.TrashPath); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.st.RemoveTrash(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTrashCleanup(w http.ResponseWriter, r *http.Request) {
	items, err := s.st.ListTrash(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	cutoff := s.cfg.TrashRetentionDays
	var paths []string
	var ids []uuid.UUID
	for _, item := range items {
		if daysSince(item.DeletedAt) >= cutoff {
			paths = append(paths, item.TrashPath)
			ids = append(ids, item.ID)
		}
	}

	result := s.mutator.BulkDelete(r.Context(), paths, 0)
	for _, id := range ids {
		_ = s.st.RemoveTrash(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": result.Deleted, "failed": result.Failed})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.st.ListOperationLog(r.Context(), 200)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.undo.Undo(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "undone"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.st.ReadScanHistory(r.Context(), 50)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeErr(w, apperr.Wrap(apperr.InvalidArgument, "invalid settings body", err))
		return
	}
	for k, v := range patch {
		if err := store.PutSettingValue(r.Context(), s.st, k, v); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all := s.registry.List()
	active := 0
	for _, t := range all {
		if !t.Status.IsTerminal() {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": all, "total": len(all), "active": active})
}

func (s *Server) handlePauseTask(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.registry.PauseTask(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.registry.ResumeTask(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.registry.Cancel(id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleTasksCleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"removed": s.registry.Cleanup()})
}

func daysSince(t time.Time) int {
	return int(time.Since(t).Hours() / 24)
}
