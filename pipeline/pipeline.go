// Package pipeline implements the ingestion pipeline (C5): a fixed pool of
// goroutines draining a bounded queue, driving each media record through
// its state machine one step at a time, and reconciling registry state
// against the vector index on startup.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/embedclient"
	"github.com/hearthlink/mediavault/model"
	"github.com/hearthlink/mediavault/store"
	"github.com/hearthlink/mediavault/vectorindex"
)

// MaxAttempts bounds the retry loop back to thumbnail_ready before a
// record is moved to the terminal failed state.
const MaxAttempts = 5

// Config carries the pipeline's dependencies and tunables.
type Config struct {
	Registry    *dao.Registry
	Store       *store.ContentStore
	Thumbnailer store.Thumbnailer
	Embedder    *embedclient.Client
	Index       vectorindex.Index

	ThumbnailWidth  int
	ThumbnailHeight int
	ThumbnailDir    string

	WorkerCount int
	QueueSize   int
}

// Pipeline owns the task queue and worker pool.
type Pipeline struct {
	cfg   Config
	tasks chan string
	quit  chan struct{}
}

// New builds a Pipeline; call Start to launch its worker pool.
func New(cfg Config) *Pipeline {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Pipeline{
		cfg:   cfg,
		tasks: make(chan string, queueSize),
		quit:  make(chan struct{}),
	}
}

// Enqueue schedules gmid for processing. It returns an error if the queue
// is full rather than blocking the caller indefinitely.
func (p *Pipeline) Enqueue(gmid string) error {
	select {
	case p.tasks <- gmid:
		return nil
	default:
		return fmt.Errorf("pipeline: queue full, dropping %s", gmid)
	}
}

// Start launches the fixed-size worker pool. It returns immediately; call
// Stop to shut the workers down.
func (p *Pipeline) Start(ctx context.Context) {
	workers := p.cfg.WorkerCount
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		go p.worker(ctx, i)
	}
}

// Stop signals all workers to exit after their current task.
func (p *Pipeline) Stop() {
	close(p.quit)
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case gmid := <-p.tasks:
			p.processOnce(ctx, gmid)
		}
	}
}

// processOnce advances a record by exactly one state-machine step, based
// on whatever state it is currently in — never trusting stale in-memory
// assumptions about where it left off.
func (p *Pipeline) processOnce(ctx context.Context, gmid string) {
	m, err := p.cfg.Registry.Get(gmid)
	if err != nil {
		slog.Error("pipeline: fetch record", "gmid", gmid, "err", err)
		return
	}
	if m.Terminal() {
		return
	}

	switch m.IndexState {
	case model.StatePending:
		p.stepThumbnail(ctx, m)
	case model.StateThumbnailReady:
		p.stepEmbed(ctx, m)
	case model.StateEmbeddingInFlight:
		// A worker died mid-flight on a previous run; reconciliation
		// resets these back to thumbnail_ready before workers ever see
		// them again, so reaching this case here means it's safe to just
		// retry the embed step.
		p.stepEmbed(ctx, m)
	default:
		slog.Warn("pipeline: unexpected state for in-flight task", "gmid", gmid, "state", m.IndexState)
	}
}

func (p *Pipeline) stepThumbnail(ctx context.Context, m model.Media) {
	destDir := filepath.Join(p.cfg.ThumbnailDir, m.UploadTime.Format("2006-01-02"))
	thumbPath, err := p.cfg.Thumbnailer.Thumbnail(m.GMID, m.StoredPath, m.MediaType, destDir, p.cfg.ThumbnailWidth, p.cfg.ThumbnailHeight)
	if err != nil {
		p.fail(m, model.StatePending, fmt.Sprintf("thumbnailing failed: %v", err))
		return
	}

	if err := p.cfg.Registry.Transition(m.GMID, model.StatePending, model.StateThumbnailReady, "", false); err != nil {
		slog.Warn("pipeline: CAS lost racing thumbnail transition", "gmid", m.GMID, "err", err)
		return
	}

	// The thumbnail path isn't part of the CAS'd state itself.
	if err := p.cfg.Registry.UpdateThumbnailPath(m.GMID, thumbPath); err != nil {
		slog.Warn("pipeline: persist thumbnail path", "gmid", m.GMID, "err", err)
	}

	p.Enqueue(m.GMID)
}

func (p *Pipeline) stepEmbed(ctx context.Context, m model.Media) {
	if err := p.cfg.Registry.Transition(m.GMID, m.IndexState, model.StateEmbeddingInFlight, "", false); err != nil {
		return
	}

	textVector, imageVector, err := p.embed(ctx, m)
	if err != nil {
		p.handleEmbedFailure(m, err)
		return
	}

	err = p.cfg.Index.Upsert(ctx, vectorindex.Point{
		GMID:        m.GMID,
		TextVector:  textVector,
		ImageVector: imageVector,
		Payload:     payloadFor(m),
	})
	if err != nil {
		p.handleEmbedFailure(m, err)
		return
	}

	if err := p.cfg.Registry.Transition(m.GMID, model.StateEmbeddingInFlight, model.StateIndexed, "", false); err != nil {
		slog.Warn("pipeline: CAS lost racing indexed transition", "gmid", m.GMID, "err", err)
		return
	}

	if encoded, err := json.Marshal(imageVector); err == nil {
		if err := p.cfg.Registry.UpdateCachedImageVector(m.GMID, encoded); err != nil {
			slog.Warn("pipeline: cache image vector", "gmid", m.GMID, "err", err)
		}
	}
}

func (p *Pipeline) embed(ctx context.Context, m model.Media) (text, image []float32, err error) {
	text, err = p.cfg.Embedder.EmbedText(ctx, m.Description)
	if err != nil {
		return nil, nil, err
	}

	if len(m.CachedImageVector) > 0 {
		var cached []float32
		if err := json.Unmarshal(m.CachedImageVector, &cached); err == nil {
			return text, cached, nil
		}
	}

	f, err := p.cfg.Store.Open(m.ThumbnailPath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}

	image, err = p.cfg.Embedder.EmbedImage(ctx, buf)
	if err != nil {
		return nil, nil, err
	}
	return text, image, nil
}

func (p *Pipeline) handleEmbedFailure(m model.Media, cause error) {
	attempts := m.IndexAttempts + 1
	if attempts >= MaxAttempts {
		p.fail(m, model.StateEmbeddingInFlight, fmt.Sprintf("embedding failed after %d attempts: %v", attempts, cause))
		return
	}

	if err := p.cfg.Registry.Transition(m.GMID, model.StateEmbeddingInFlight, model.StateThumbnailReady, cause.Error(), true); err != nil {
		slog.Warn("pipeline: CAS lost racing retry transition", "gmid", m.GMID, "err", err)
		return
	}

	delay := backoffWithJitter(attempts)
	time.AfterFunc(delay, func() {
		if err := p.Enqueue(m.GMID); err != nil {
			slog.Error("pipeline: re-enqueue after backoff", "gmid", m.GMID, "err", err)
		}
	})
}

func (p *Pipeline) fail(m model.Media, from model.IndexState, reason string) {
	if err := p.cfg.Registry.Transition(m.GMID, from, model.StateFailed, reason, true); err != nil {
		slog.Warn("pipeline: CAS lost racing failed transition", "gmid", m.GMID, "err", err)
	}
}

func backoffWithJitter(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func payloadFor(m model.Media) map[string]any {
	return map[string]any{
		"original_name":  m.OriginalName,
		"stored_path":    m.StoredPath,
		"thumbnail_path": m.ThumbnailPath,
		"media_type":     string(m.MediaType),
		"size_bytes":     m.SizeBytes,
		"width":          m.Width,
		"height":         m.Height,
		"duration_ms":    m.DurationMs,
		"upload_time":    m.UploadTime.Format(time.RFC3339),
		"description":    m.Description,
		"schema_version": m.SchemaVersion,
	}
}

// Reconcile re-scans every non-terminal registry record on startup and
// re-enqueues it, then checks every indexed record's GMID against the
// vector index directly: any indexed record the index has actually lost
// is demoted back to thumbnail_ready and re-enqueued.
func (p *Pipeline) Reconcile(ctx context.Context) error {
	nonTerminal, err := p.cfg.Registry.ListNonTerminal()
	if err != nil {
		return fmt.Errorf("pipeline: reconcile: list non-terminal: %w", err)
	}

	for _, m := range nonTerminal {
		if m.IndexState == model.StateEmbeddingInFlight {
			// The worker that owned this task is gone; reset it so a
			// fresh worker starts the embed step cleanly.
			if err := p.cfg.Registry.Transition(m.GMID, model.StateEmbeddingInFlight, model.StateThumbnailReady, "reconciled after restart", false); err != nil {
				slog.Warn("pipeline: reconcile reset", "gmid", m.GMID, "err", err)
				continue
			}
		}
		if err := p.Enqueue(m.GMID); err != nil {
			slog.Error("pipeline: reconcile enqueue", "gmid", m.GMID, "err", err)
		}
	}

	indexed, err := p.cfg.Registry.ListIndexed()
	if err != nil {
		return fmt.Errorf("pipeline: reconcile: list indexed: %w", err)
	}
	for _, m := range indexed {
		exists, err := p.cfg.Index.Exists(ctx, m.GMID)
		if err != nil {
			slog.Warn("pipeline: reconcile: check index membership", "gmid", m.GMID, "err", err)
			continue
		}
		if exists {
			continue
		}

		if err := p.cfg.Registry.Transition(m.GMID, model.StateIndexed, model.StateThumbnailReady, "reconciled: missing from vector index", false); err != nil {
			slog.Warn("pipeline: reconcile demote", "gmid", m.GMID, "err", err)
			continue
		}
		if err := p.Enqueue(m.GMID); err != nil {
			slog.Error("pipeline: reconcile enqueue", "gmid", m.GMID, "err", err)
		}
	}

	return nil
}
