// Package search implements the search engine (C6): the three retrieval
// modes over the vector index, with server-enforced score thresholds.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/embedclient"
	"github.com/hearthlink/mediavault/vectorindex"
)

// Thresholds holds the server-enforced minimum scores for each search
// mode; clients may never override these.
type Thresholds struct {
	TextToText   float64
	TextToImage  float64
	ImageToImage float64
}

// Engine answers text, image, and similar-content queries against the
// vector index.
type Engine struct {
	Embedder   *embedclient.Client
	Index      vectorindex.Index
	Registry   *dao.Registry
	Thresholds Thresholds
}

// Result is one scored hit, already resolved to a score rather than a raw
// distance.
type Result struct {
	GMID  string
	Score float64
}

// SearchByText implements Mode A: a text query is embedded once and
// matched in parallel against both the text_embedding and image_embedding
// vectors; a GMID hit by both keeps the higher of the two scores.
func (e *Engine) SearchByText(ctx context.Context, query string, limit int) ([]Result, error) {
	vector, err := e.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query text: %w", err)
	}

	var textHits, imageHits []vectorindex.Hit
	var textErr, imageErr error
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		textHits, textErr = e.Index.Search(ctx, vectorindex.VectorNameText, vector, limit, e.Thresholds.TextToText)
	}()
	go func() {
		defer wg.Done()
		imageHits, imageErr = e.Index.Search(ctx, vectorindex.VectorNameImage, vector, limit, e.Thresholds.TextToImage)
	}()
	wg.Wait()

	if textErr != nil {
		return nil, fmt.Errorf("search: text-to-text: %w", textErr)
	}
	if imageErr != nil {
		return nil, fmt.Errorf("search: text-to-image: %w", imageErr)
	}

	merged := mergeByMaxScore(textHits, imageHits)
	return topN(merged, limit), nil
}

// SearchByImage implements Mode B: an uploaded image is embedded and
// matched only against image_embedding vectors.
func (e *Engine) SearchByImage(ctx context.Context, imageBytes []byte, limit int) ([]Result, error) {
	vector, err := e.Embedder.EmbedImage(ctx, imageBytes)
	if err != nil {
		return nil, fmt.Errorf("search: embed query image: %w", err)
	}
	hits, err := e.Index.Search(ctx, vectorindex.VectorNameImage, vector, limit, e.Thresholds.ImageToImage)
	if err != nil {
		return nil, fmt.Errorf("search: image-to-image: %w", err)
	}
	return toResults(hits), nil
}

// SearchSimilar implements Mode C: find content similar to an existing
// media item's own image vector, excluding that item from its own results.
func (e *Engine) SearchSimilar(ctx context.Context, gmid string, limit int) ([]Result, error) {
	m, err := e.Registry.Get(gmid)
	if err != nil {
		return nil, fmt.Errorf("search: load reference record: %w", err)
	}
	if len(m.CachedImageVector) == 0 {
		return nil, fmt.Errorf("search: reference record %s has no cached image vector yet", gmid)
	}

	var vector []float32
	if err := json.Unmarshal(m.CachedImageVector, &vector); err != nil {
		return nil, fmt.Errorf("search: decode cached vector: %w", err)
	}

	// Ask for one extra result to absorb the self-match we're about to
	// exclude.
	hits, err := e.Index.Search(ctx, vectorindex.VectorNameImage, vector, limit+1, e.Thresholds.ImageToImage)
	if err != nil {
		return nil, fmt.Errorf("search: similar-by-content: %w", err)
	}

	out := make([]Result, 0, limit)
	for _, h := range hits {
		if h.GMID == gmid {
			continue
		}
		out = append(out, Result{GMID: h.GMID, Score: h.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func mergeByMaxScore(a, b []vectorindex.Hit) []Result {
	best := make(map[string]float64)
	for _, h := range a {
		best[h.GMID] = h.Score
	}
	for _, h := range b {
		if existing, ok := best[h.GMID]; !ok || h.Score > existing {
			best[h.GMID] = h.Score
		}
	}
	out := make([]Result, 0, len(best))
	for gmid, score := range best {
		out = append(out, Result{GMID: gmid, Score: score})
	}
	return out
}

func toResults(hits []vectorindex.Hit) []Result {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{GMID: h.GMID, Score: h.Score})
	}
	return out
}

func topN(results []Result, n int) []Result {
	// Simple selection sort is fine here: result sets are bounded by
	// limit*2 at most, never large enough to justify sort.Slice overhead
	// analysis.
	for i := 0; i < len(results) && i < n; i++ {
		maxIdx := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Score > results[maxIdx].Score {
				maxIdx = j
			}
		}
		results[i], results[maxIdx] = results[maxIdx], results[i]
	}
	if n < len(results) {
		return results[:n]
	}
	return results
}
