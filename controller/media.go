package controller

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/app"
	"github.com/hearthlink/mediavault/dao"
	"github.com/hearthlink/mediavault/model"
	"github.com/hearthlink/mediavault/request"
	"github.com/hearthlink/mediavault/response"
)

// MediaController exposes upload, listing, description edits, and
// retraction over the content store and metadata registry.
type MediaController struct {
	App *app.Context
}

func (m *MediaController) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, "missing file field", err))
		return
	}

	if fileHeader.Size > m.App.Config.MaxUploadSize {
		writeError(c, apperr.New(apperr.PayloadTooLarge, "upload exceeds the configured size limit"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "open uploaded file", err))
		return
	}
	defer f.Close()

	uploadTime := time.Now()
	saved, err := m.App.Store.Save(fileHeader.Filename, f, uploadTime)
	if err != nil {
		writeError(c, err)
		return
	}

	existing, err := m.App.Registry.Get(saved.GMID)
	if err == nil {
		// The upload duplicates existing content; the registry already
		// has a record for this GMID, so discard the bytes this Save just
		// wrote rather than leaving an orphaned duplicate file on disk.
		if derr := m.App.Store.Delete(saved.StoredPath, ""); derr != nil {
			slog.Warn("controller: clean up duplicate upload", "gmid", saved.GMID, "err", derr)
		}
		c.JSON(http.StatusOK, response.Write(response.FromMedia(existing)))
		return
	}
	if err != dao.ErrNotFound {
		writeError(c, apperr.Wrap(apperr.Internal, "check existing record", err))
		return
	}

	record := &model.Media{
		GMID:         saved.GMID,
		OriginalName: fileHeader.Filename,
		StoredPath:   saved.StoredPath,
		MediaType:    saved.MediaType,
		SizeBytes:    saved.SizeBytes,
		UploadTime:   uploadTime,
		IndexState:   model.StatePending,
	}
	if err := m.App.Registry.Create(record); err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "create media record", err))
		return
	}

	if err := m.App.Pipeline.Enqueue(record.GMID); err != nil {
		writeError(c, apperr.Wrap(apperr.Dependency, "ingestion queue is full", err))
		return
	}

	c.JSON(http.StatusCreated, response.Write(response.FromMedia(*record)))
}

func (m *MediaController) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		pageSize = 20
	}

	filter := dao.ListFilter{}
	if mt := c.Query("media_type"); mt != "" {
		filter.MediaType = model.MediaType(mt)
	}

	items, total, err := m.App.Registry.List(filter, page, pageSize)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "list media", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(response.MediaPage{
		Items:    response.FromMediaList(items),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}))
}

func (m *MediaController) Get(c *gin.Context) {
	gmid := c.Param("gmid")
	rec, err := m.App.Registry.Get(gmid)
	if err == dao.ErrNotFound {
		writeError(c, apperr.New(apperr.NotFound, "media not found"))
		return
	}
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "get media", err))
		return
	}
	c.JSON(http.StatusOK, response.Write(response.FromMedia(rec)))
}

func (m *MediaController) UpdateDescription(c *gin.Context) {
	gmid := c.Param("gmid")
	var req request.UpdateDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrParseRequest)
		return
	}

	if err := m.App.Registry.UpdateDescription(gmid, req.Description); err != nil {
		if err == dao.ErrNotFound {
			writeError(c, apperr.New(apperr.NotFound, "media not found"))
			return
		}
		writeError(c, apperr.Wrap(apperr.Internal, "update description", err))
		return
	}

	// A description edit only changes the text side of the pair, so the
	// record re-enters the pipeline at thumbnail_ready; stepEmbed reuses
	// the cached image vector instead of re-reading the thumbnail.
	if err := m.App.Registry.Transition(gmid, model.StateIndexed, model.StateThumbnailReady, "", false); err != nil {
		// The record may already be mid-pipeline for another reason;
		// that's fine, it will pick up the new description when it gets
		// there.
	}
	_ = m.App.Pipeline.Enqueue(gmid)

	c.JSON(http.StatusOK, response.Response{})
}

func (m *MediaController) Delete(c *gin.Context) {
	gmid := c.Param("gmid")
	rec, err := m.App.Registry.Get(gmid)
	if err == dao.ErrNotFound {
		writeError(c, apperr.New(apperr.NotFound, "media not found"))
		return
	}
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "get media", err))
		return
	}

	if err := m.App.Index.Delete(c.Request.Context(), gmid); err != nil {
		writeError(c, apperr.Wrap(apperr.Dependency, "remove from vector index", err))
		return
	}
	if err := m.App.Store.Delete(rec.StoredPath, rec.ThumbnailPath); err != nil {
		writeError(c, err)
		return
	}
	if err := m.App.Registry.Delete(gmid); err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "delete media record", err))
		return
	}

	c.JSON(http.StatusOK, response.Response{})
}

func (m *MediaController) Original(c *gin.Context) {
	m.serveFile(c, func(rec model.Media) string { return rec.StoredPath })
}

func (m *MediaController) Thumbnail(c *gin.Context) {
	m.serveFile(c, func(rec model.Media) string { return rec.ThumbnailPath })
}

func (m *MediaController) serveFile(c *gin.Context, pick func(model.Media) string) {
	gmid := c.Param("gmid")
	rec, err := m.App.Registry.Get(gmid)
	if err == dao.ErrNotFound {
		writeError(c, apperr.New(apperr.NotFound, "media not found"))
		return
	}
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "get media", err))
		return
	}

	path := pick(rec)
	if path == "" {
		writeError(c, apperr.New(apperr.NotFound, "no file available yet"))
		return
	}

	f, err := m.App.Store.Open(path)
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		slog.Warn("controller: stream file", "gmid", gmid, "err", err)
	}
}
