package response

// SearchHit is one scored result from any of the three search modes.
type SearchHit struct {
	Media MediaResponse `json:"media"`
	Score float64       `json:"score"`
}

// SearchStats reports the vector index's current health, surfaced at
// GET /api/v1/search/stats.
type SearchStats struct {
	IndexedCount   int64 `json:"indexed_count"`
	VectorCount    int64 `json:"vector_count"`
	Dimension      int   `json:"dimension"`
}
