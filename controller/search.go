package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/app"
	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/request"
	"github.com/hearthlink/mediavault/response"
	"github.com/hearthlink/mediavault/search"
)

// SearchController exposes the three retrieval modes over the search
// engine.
type SearchController struct {
	App *app.Context
}

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *SearchController) Text(c *gin.Context) {
	var req request.TextSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrParseRequest)
		return
	}
	limit := normalizeLimit(req.Limit)

	results, err := s.App.Search.SearchByText(c.Request.Context(), req.Query, limit)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Dependency, "text search failed", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(s.resolveHits(results)))
}

func (s *SearchController) ByImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, "missing file field", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "open uploaded file", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "read uploaded file", err))
		return
	}

	limit := normalizeLimit(0)
	results, err := s.App.Search.SearchByImage(c.Request.Context(), data, limit)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Dependency, "image search failed", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(s.resolveHits(results)))
}

func (s *SearchController) Similar(c *gin.Context) {
	var req request.SimilarSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrParseRequest)
		return
	}
	limit := normalizeLimit(req.Limit)

	results, err := s.App.Search.SearchSimilar(c.Request.Context(), req.GMID, limit)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "reference media not found"))
			return
		}
		writeError(c, apperr.Wrap(apperr.Dependency, "similar search failed", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(s.resolveHits(results)))
}

func (s *SearchController) Stats(c *gin.Context) {
	stats, err := s.App.Index.Stats(c.Request.Context())
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Dependency, "fetch index stats", err))
		return
	}
	indexed, err := s.App.Registry.ListIndexed()
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "list indexed records", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(response.SearchStats{
		IndexedCount: int64(len(indexed)),
		VectorCount:  stats.PointCount,
		Dimension:    stats.Dimension,
	}))
}

func (s *SearchController) resolveHits(results []search.Result) []response.SearchHit {
	hits := make([]response.SearchHit, 0, len(results))
	for _, r := range results {
		rec, err := s.App.Registry.Get(r.GMID)
		if err != nil {
			continue
		}
		hits = append(hits, response.SearchHit{
			Media: response.FromMedia(rec),
			Score: r.Score,
		})
	}
	return hits
}

func normalizeLimit(requested int) int {
	if requested <= 0 {
		return defaultSearchLimit
	}
	if requested > maxSearchLimit {
		return maxSearchLimit
	}
	return requested
}
