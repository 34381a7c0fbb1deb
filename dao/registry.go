// Package dao implements the metadata registry (C2): the single source of
// truth for each media item's lifecycle, backed by gorm over sqlite. Every
// state transition goes through a compare-and-set update so concurrent
// pipeline workers can never race each other into an inconsistent state.
package dao

import (
	"errors"
	"fmt"
	"time"

	"github.com/hearthlink/mediavault/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Registry wraps a *gorm.DB scoped to the media table.
type Registry struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite-backed registry at path and
// migrates the schema.
func Open(path string) (*Registry, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("dao: open registry: %w", err)
	}
	if err := db.AutoMigrate(&model.Media{}); err != nil {
		return nil, fmt.Errorf("dao: migrate registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the underlying database connection.
func (r *Registry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("dao: record not found")

// ErrCASMismatch is returned when a compare-and-set transition's expected
// prior state no longer holds.
var ErrCASMismatch = errors.New("dao: compare-and-set mismatch")

// Create inserts a new record, used the first time a GMID is seen.
func (r *Registry) Create(m *model.Media) error {
	if err := r.db.Create(m).Error; err != nil {
		return fmt.Errorf("dao: create %s: %w", m.GMID, err)
	}
	return nil
}

// Get fetches one record by GMID.
func (r *Registry) Get(gmid string) (model.Media, error) {
	var m model.Media
	err := r.db.Where("gmid = ?", gmid).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Media{}, ErrNotFound
	}
	if err != nil {
		return model.Media{}, fmt.Errorf("dao: get %s: %w", gmid, err)
	}
	return m, nil
}

// ListFilter narrows a paged listing. A zero value matches everything.
type ListFilter struct {
	MediaType model.MediaType
}

// List returns one page of records ordered by upload_time desc, matching
// filter, along with the total count across all pages (ignoring
// pagination). page is 1-based; pageSize is clamped to [1, 100] per
// spec.md's C2 contract.
func (r *Registry) List(filter ListFilter, page, pageSize int) ([]model.Media, int64, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = 1
	case pageSize > 100:
		pageSize = 100
	}

	query := r.db.Model(&model.Media{})
	if filter.MediaType != "" {
		query = query.Where("media_type = ?", filter.MediaType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("dao: count list: %w", err)
	}

	var items []model.Media
	err := query.Order("upload_time desc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("dao: list: %w", err)
	}
	return items, total, nil
}

// ListNonTerminal returns every record not yet in a terminal state, used by
// the pipeline's startup reconciliation scan.
func (r *Registry) ListNonTerminal() ([]model.Media, error) {
	var items []model.Media
	err := r.db.Where("index_state NOT IN ?", []model.IndexState{model.StateIndexed, model.StateFailed}).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("dao: list non-terminal: %w", err)
	}
	return items, nil
}

// ListIndexed returns every record currently marked indexed, used to
// cross-check against the vector index's own point count.
func (r *Registry) ListIndexed() ([]model.Media, error) {
	var items []model.Media
	if err := r.db.Where("index_state = ?", model.StateIndexed).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("dao: list indexed: %w", err)
	}
	return items, nil
}

// Transition performs the registry's sole mutation primitive: a
// compare-and-set from an expected current state to a new state. On
// success it also updates index_attempts and last_error as instructed.
// Returns ErrCASMismatch if the record's state no longer matches from.
func (r *Registry) Transition(gmid string, from, to model.IndexState, lastError string, bumpAttempts bool) error {
	updates := map[string]any{
		"index_state": to,
		"last_error":  lastError,
		"updated_at":  time.Now(),
	}
	if bumpAttempts {
		updates["index_attempts"] = gorm.Expr("index_attempts + 1")
	}

	tx := r.db.Model(&model.Media{}).
		Where("gmid = ? AND index_state = ?", gmid, from).
		Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("dao: transition %s: %w", gmid, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrCASMismatch
	}
	return nil
}

// UpdateDescription rewrites a record's description and stamps
// description_updated_at, independent of index_state.
func (r *Registry) UpdateDescription(gmid, description string) error {
	now := time.Now()
	tx := r.db.Model(&model.Media{}).
		Where("gmid = ?", gmid).
		Updates(map[string]any{
			"description":           description,
			"description_updated_at": &now,
			"updated_at":             now,
		})
	if tx.Error != nil {
		return fmt.Errorf("dao: update description %s: %w", gmid, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCachedImageVector stores the last successfully computed image
// embedding so a later description-only edit can skip re-embedding the
// image side.
func (r *Registry) UpdateCachedImageVector(gmid string, vector []byte) error {
	tx := r.db.Model(&model.Media{}).Where("gmid = ?", gmid).Update("cached_image_vector", vector)
	if tx.Error != nil {
		return fmt.Errorf("dao: update cached image vector %s: %w", gmid, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateThumbnailPath records where a record's rendered thumbnail landed.
func (r *Registry) UpdateThumbnailPath(gmid, thumbnailPath string) error {
	tx := r.db.Model(&model.Media{}).Where("gmid = ?", gmid).Update("thumbnail_path", thumbnailPath)
	if tx.Error != nil {
		return fmt.Errorf("dao: update thumbnail path %s: %w", gmid, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a record outright, used when an upload is retracted.
func (r *Registry) Delete(gmid string) error {
	tx := r.db.Where("gmid = ?", gmid).Delete(&model.Media{})
	if tx.Error != nil {
		return fmt.Errorf("dao: delete %s: %w", gmid, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
