// Package api exposes the engine's HTTP/JSON surface and WebSocket
// progress stream. It holds no business logic of its own — every handler
// validates its request, calls into a core package, and serializes the
// result.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/gwlsn/mediavault/internal/bus"
	"github.com/gwlsn/mediavault/internal/catalog"
	"github.com/gwlsn/mediavault/internal/config"
	"github.com/gwlsn/mediavault/internal/dedupe"
	"github.com/gwlsn/mediavault/internal/hashing"
	"github.com/gwlsn/mediavault/internal/mutate"
	"github.com/gwlsn/mediavault/internal/scanner"
	"github.com/gwlsn/mediavault/internal/store"
	"github.com/gwlsn/mediavault/internal/tasks"
	"github.com/gwlsn/mediavault/internal/undo"
)

// Server wires every core package behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	st       store.Store
	bus      *bus.Bus
	registry *tasks.Registry
	scanner  *scanner.Scanner
	hasher   *hashing.Engine
	dedupe   *dedupe.Engine
	scraper  *catalog.Scraper
	mutator  *mutate.Mutator
	undo     *undo.Engine

	validate *validator.Validate
}

// New builds a Server from the engine's core components.
func New(cfg *config.Config, st store.Store, b *bus.Bus, registry *tasks.Registry,
	sc *scanner.Scanner, hasher *hashing.Engine, de *dedupe.Engine,
	scraper *catalog.Scraper, mutator *mutate.Mutator, undoEngine *undo.Engine) *Server {
	return &Server{
		cfg: cfg, st: st, bus: b, registry: registry,
		scanner: sc, hasher: hasher, dedupe: de, scraper: scraper,
		mutator: mutator, undo: undoEngine,
		validate: validator.New(),
	}
}

// Router builds the chi router exposing every named endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
	}))

	r.Post("/scan", s.handleScan)

	r.Get("/files", s.handleListFiles)
	r.Get("/files/{id}", s.handleGetFile)
	r.Post("/files/{id}/hash", s.handleHashFile)
	r.Post("/files/{id}/move", s.handleMoveFile)
	r.Post("/files/{id}/copy", s.handleCopyFile)
	r.Post("/files/batch-move", s.handleBatchMove)
	r.Post("/files/batch-copy", s.handleBatchCopy)
	r.Get("/files/{id}/nfo", s.handleGetNFO)
	r.Put("/files/{id}/nfo", s.handleWriteNFO)

	r.Post("/scrape", s.handleScrape)
	r.Post("/scrape/batch", s.handleScrapeBatch)

	r.Post("/rename", s.handleRename)
	r.Post("/dedupe", s.handleDedupe)
	r.Get("/dedupe/movies", s.handleDedupeMovies)

	r.Get("/empty-dirs", s.handleListEmptyDirs)
	r.Post("/empty-dirs/delete", s.handleDeleteEmptyDirs)

	r.Get("/trash", s.handleListTrash)
	r.Post("/trash/cleanup", s.handleTrashCleanup)
	r.Post("/trash/{id}", s.handleTrashFile)
	r.Post("/trash/{id}/restore", s.handleRestoreTrash)
	r.Delete("/trash/{id}", s.handleDeleteTrashed)

	r.Get("/logs", s.handleListLogs)
	r.Post("/logs/{id}/undo", s.handleUndo)
	r.Get("/history", s.handleHistory)

	r.Get("/settings", s.handleGetSettings)
	r.Post("/settings", s.handlePutSettings)

	r.Get("/tasks", s.handleListTasks)
	r.Post("/tasks/cleanup", s.handleTasksCleanup)
	r.Post("/tasks/{id}/pause", s.handlePauseTask)
	r.Post("/tasks/{id}/resume", s.handleResumeTask)
	r.Delete("/tasks/{id}", s.handleCancelTask)

	r.Get("/ws", s.handleWebSocket)

	return r
}
