// Package vectorindex implements the vector index (C4): a thin adapter
// over a remote Qdrant collection holding two named vectors per point,
// text_embedding and image_embedding.
package vectorindex

import "context"

// Point is one media item's vector-index record: its two named vectors
// plus whatever payload the caller wants filtered or returned alongside a
// hit.
type Point struct {
	GMID           string
	TextVector     []float32
	ImageVector    []float32
	Payload        map[string]any
}

// Hit is a single scored search result.
type Hit struct {
	GMID    string
	Score   float64
	Payload map[string]any
}

// Stats summarizes the collection's current shape, surfaced at
// GET /api/v1/search/stats.
type Stats struct {
	PointCount int64
	Dimension  int
}

// Index is the C4 contract: collection lifecycle, point upsert/delete, and
// similarity search against either named vector.
type Index interface {
	// EnsureCollection creates the collection if absent. If it exists with
	// a different vector dimension, behavior is governed by
	// fixDimensionOnMismatch: when true the collection is destroyed and
	// recreated (data loss, logged loudly); when false an error is
	// returned.
	EnsureCollection(ctx context.Context, dimension int, fixDimensionOnMismatch bool) error

	Upsert(ctx context.Context, p Point) error
	Delete(ctx context.Context, gmid string) error

	// Exists reports whether a point for gmid is currently present in the
	// collection, used by startup reconciliation to find indexed registry
	// records the index has actually lost.
	Exists(ctx context.Context, gmid string) (bool, error)

	// Search queries against a single named vector ("text_embedding" or
	// "image_embedding"), returning hits at or above minScore.
	Search(ctx context.Context, vectorName string, query []float32, limit int, minScore float64) ([]Hit, error)

	Stats(ctx context.Context) (Stats, error)
}

const (
	VectorNameText  = "text_embedding"
	VectorNameImage = "image_embedding"
)
