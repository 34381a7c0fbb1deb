// Command server starts the mediavault ingestion and retrieval HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthlink/mediavault/app"
	"github.com/hearthlink/mediavault/config"
	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/embedclient"
	"github.com/hearthlink/mediavault/pipeline"
	"github.com/hearthlink/mediavault/router"
	"github.com/hearthlink/mediavault/search"
	"github.com/hearthlink/mediavault/store"
	"github.com/hearthlink/mediavault/vectorindex"
)

func main() {
	os.Exit(run())
}

// Exit codes follow spec.md §6: 0 clean shutdown, 1 config error, 2
// registry open failure, 3 vector index unreachable at startup.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("startup: load config", "err", err)
		return 1
	}

	slog.Info("startup: mediavault starting",
		"content_root", cfg.ContentRoot,
		"worker_count", cfg.WorkerCount,
		"vector_db", cfg.VectorDBURL,
	)

	registry, err := dao.Open(cfg.ContentRoot + "/registry/mediavault.db")
	if err != nil {
		slog.Error("startup: open registry", "err", err)
		return 2
	}
	defer registry.Close()

	contentStore, err := store.New(cfg.ContentRoot, cfg.AllowedPhotoExtensions, cfg.AllowedVideoExtensions)
	if err != nil {
		slog.Error("startup: open content store", "err", err)
		return 1
	}

	index, err := vectorindex.NewQdrant(cfg.VectorDBURL, cfg.VectorCollection)
	if err != nil {
		slog.Error("startup: connect to vector index", "err", err)
		return 3
	}

	ctx := context.Background()
	if err := index.EnsureCollection(ctx, cfg.VectorDimension, cfg.FixDimensionOnMismatch); err != nil {
		if cfg.RequireIndexOnStart {
			slog.Error("startup: ensure vector collection", "err", err)
			return 3
		}
		slog.Warn("startup: vector collection not ready, continuing without it", "err", err)
	}

	embedder := embedclient.New(embedclient.Config{
		BaseURL:         cfg.EmbeddingBaseURL,
		APIKey:          cfg.EmbeddingKey,
		TextRatePerSec:  cfg.EmbedTextRatePerSec,
		ImageRatePerSec: cfg.EmbedImageRatePerSec,
		MaxRetries:      cfg.EmbedMaxRetries,
		CallTimeout:     cfg.EmbedCallTimeout,
	})

	thumbnailer := &store.ImagingThumbnailer{}

	pl := pipeline.New(pipeline.Config{
		Registry:        registry,
		Store:           contentStore,
		Thumbnailer:     thumbnailer,
		Embedder:        embedder,
		Index:           index,
		ThumbnailWidth:  cfg.ThumbnailWidth,
		ThumbnailHeight: cfg.ThumbnailHeight,
		ThumbnailDir:    cfg.ContentRoot + "/thumbnails",
		WorkerCount:     cfg.WorkerCount,
		QueueSize:       cfg.QueueSize,
	})

	searchEngine := &search.Engine{
		Embedder: embedder,
		Index:    index,
		Registry: registry,
		Thresholds: search.Thresholds{
			TextToText:   cfg.TextToTextThreshold,
			TextToImage:  cfg.TextToImageThreshold,
			ImageToImage: cfg.ImageToImageThreshold,
		},
	}

	appCtx := &app.Context{
		Config:   cfg,
		Registry: registry,
		Store:    contentStore,
		Embedder: embedder,
		Index:    index,
		Pipeline: pl,
		Search:   searchEngine,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	pl.Start(workerCtx)

	if err := pl.Reconcile(ctx); err != nil {
		slog.Error("startup: reconcile ingestion pipeline", "err", err)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.Register(appCtx),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		slog.Error("server: listen failed", "err", err)
		return 1
	case sig := <-sigCh:
		slog.Info("shutdown: signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown: http server", "err", err)
	}

	pl.Stop()
	cancelWorkers()

	time.Sleep(200 * time.Millisecond)
	slog.Info("shutdown: complete")
	return 0
}
