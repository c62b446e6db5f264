package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"github.com/gwlsn/mediavault/internal/api"
	"github.com/gwlsn/mediavault/internal/apperr"
	"github.com/gwlsn/mediavault/internal/bus"
	"github.com/gwlsn/mediavault/internal/catalog"
	"github.com/gwlsn/mediavault/internal/config"
	"github.com/gwlsn/mediavault/internal/dedupe"
	"github.com/gwlsn/mediavault/internal/hashing"
	"github.com/gwlsn/mediavault/internal/logger"
	"github.com/gwlsn/mediavault/internal/model"
	"github.com/gwlsn/mediavault/internal/mutate"
	"github.com/gwlsn/mediavault/internal/scanner"
	"github.com/gwlsn/mediavault/internal/store"
	"github.com/gwlsn/mediavault/internal/tasks"
	"github.com/gwlsn/mediavault/internal/undo"
	"github.com/gwlsn/mediavault/internal/videoprobe"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/mediavault.yaml)")
	port := flag.Int("port", 0, "Override server port from config")
	mediaPath := flag.String("media", "", "Override media path from config")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/mediavault.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("warning: could not load config from %s: %v", cfgPath, err)
		cfg = config.DefaultConfig()
	}
	if envMedia := os.Getenv("MEDIA_PATH"); envMedia != "" {
		cfg.MediaPath = envMedia
	}
	if *mediaPath != "" {
		cfg.MediaPath = *mediaPath
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger.Init(cfg.LogLevel)
	logger.Info("starting mediavault",
		"media_path", cfg.MediaPath, "data_dir", cfg.DataDir, "port", cfg.Port)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.TrashDir, 0o755); err != nil {
		log.Fatalf("creating trash directory: %v", err)
	}

	st, err := store.NewSQLiteStore(cfg.DatabaseFile)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	if info, err := os.Stat(cfg.DatabaseFile); err == nil {
		logger.Info("database opened", "file", cfg.DatabaseFile, "size", humanize.Bytes(uint64(info.Size())))
	}
	logger.Info("hash chunk size", "size", humanize.Bytes(uint64(cfg.HashChunkBytes)))

	b := bus.New(0)

	registry := tasks.New(b, tasks.Limits{
		model.TaskScan: cfg.Workers.Scan, model.TaskHash: cfg.Workers.Hash, model.TaskScrape: cfg.Workers.Scrape,
		model.TaskRename: cfg.Workers.Rename, model.TaskBatchMove: cfg.Workers.BatchMove,
		model.TaskBatchCopy: cfg.Workers.BatchCopy, model.TaskCleanup: cfg.Workers.Cleanup,
	})
	registry.Start()
	defer registry.Stop()

	prober := videoprobe.NewExternalProber("ffprobe")
	sc := scanner.New(st, prober)
	hasher := hashing.New(st, cfg.HashChunkBytes)
	dedupeEngine := dedupe.New(st)

	// No production catalog HTTP client is bundled here: the external
	// catalog service is a named but out-of-scope collaborator. Without
	// one wired in, every scrape call fails clearly rather than
	// returning silent no-matches.
	if cfg.CatalogAPIKey == "" {
		logger.Warn("no catalog_api_key configured, metadata scraping is disabled")
	}
	scraper := catalog.New(st, unconfiguredProvider{}, cfg.CatalogRatePerSec)

	fs := afero.NewOsFs()
	mutator := mutate.New(fs, st, cfg.TrashDir, cfg.HashChunkBytes)
	undoEngine := undo.New(st, mutator)

	server := api.New(cfg, st, b, registry, sc, hasher, dedupeEngine, scraper, mutator, undoEngine)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@daily", func() { sweepTrash(st, mutator, cfg.TrashRetentionDays) }); err != nil {
		logger.Warn("failed to schedule trash retention sweep", "error", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Router(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	logger.Info("listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// sweepTrash permanently removes trash items past the retention window.
func sweepTrash(st store.Store, mutator *mutate.Mutator, retentionDays int) {
	ctx := context.Background()
	items, err := st.ListTrash(ctx)
	if err != nil {
		logger.Warn("trash sweep: listing trash failed", "error", err)
		return
	}

	var paths []string
	for _, item := range items {
		if int(time.Since(item.DeletedAt).Hours()/24) < retentionDays {
			continue
		}
		paths = append(paths, item.TrashPath)
	}
	if len(paths) == 0 {
		return
	}

	result := mutator.BulkDelete(ctx, paths, 0)
	for _, item := range items {
		if int(time.Since(item.DeletedAt).Hours()/24) < retentionDays {
			continue
		}
		if err := st.RemoveTrash(ctx, item.ID); err != nil {
			logger.Warn("trash sweep: removing row failed", "id", item.ID, "error", err)
		}
	}
	logger.Info("trash retention sweep complete", "deleted", result.Deleted, "failed", result.Failed)
}

// unconfiguredProvider is the Provider main wires in whether or not a
// catalog API key is set, since no catalog client is bundled: every call
// fails with ExternalServiceUnavailable rather than silently returning no
// matches, so a caller can distinguish "not configured" from "no results".
type unconfiguredProvider struct{}

func (unconfiguredProvider) Search(ctx context.Context, title string, year int) ([]catalog.SearchResult, error) {
	return nil, apperr.New(apperr.ExternalServiceUnavailable, "no catalog provider configured")
}

func (unconfiguredProvider) FetchDetail(ctx context.Context, catalogID string) (*catalog.Detail, error) {
	return nil, apperr.New(apperr.ExternalServiceUnavailable, "no catalog provider configured")
}
