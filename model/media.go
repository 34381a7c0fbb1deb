package model

import "time"

// IndexState is the media record's position in the ingestion state machine:
// pending -> thumbnail_ready -> embedding_in_flight -> indexed, with a
// retry loop back to thumbnail_ready on transient embedding failure and a
// terminal failed state once retries are exhausted.
type IndexState string

const (
	StatePending            IndexState = "pending"
	StateThumbnailReady     IndexState = "thumbnail_ready"
	StateEmbeddingInFlight  IndexState = "embedding_in_flight"
	StateIndexed            IndexState = "indexed"
	StateFailed             IndexState = "failed"
)

// MediaType distinguishes the two supported content families; it governs
// which extension whitelist and thumbnailing path a record takes.
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// Media is the metadata registry's row for one ingested item, keyed by its
// content-derived GMID. Exactly one row exists per distinct byte content.
type Media struct {
	GMID string `gorm:"primaryKey;column:gmid;size:32" json:"gmid"`

	OriginalName  string    `gorm:"not null" json:"original_name"`
	StoredPath    string    `gorm:"not null" json:"stored_path"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	MediaType     MediaType `gorm:"not null;index" json:"media_type"`
	SizeBytes     int64     `gorm:"not null" json:"size_bytes"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`

	UploadTime  time.Time `gorm:"not null;index" json:"upload_time"`
	Description string    `json:"description,omitempty"`

	// DescriptionUpdatedAt is stamped on every description edit. The
	// pipeline does not read it; racing edits are not told apart.
	DescriptionUpdatedAt *time.Time `json:"description_updated_at,omitempty"`

	// CachedImageVector holds the last successfully computed image
	// embedding, JSON-encoded, so a description-only edit can re-embed the
	// text side alone and upsert with this vector instead of re-reading
	// the thumbnail and calling the embedding provider for the image side
	// again.
	CachedImageVector []byte `json:"-"`

	IndexState     IndexState `gorm:"not null;index;default:pending" json:"index_state"`
	IndexAttempts  int        `gorm:"not null;default:0" json:"index_attempts"`
	LastError      string     `json:"last_error,omitempty"`
	SchemaVersion  int        `gorm:"not null;default:1" json:"schema_version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Media) TableName() string {
	return "media"
}

// Terminal reports whether the record can no longer progress on its own.
// An indexed record moves again only through a description edit or a
// startup reconciliation demotion; nothing moves a failed record.
func (m Media) Terminal() bool {
	return m.IndexState == StateIndexed || m.IndexState == StateFailed
}
