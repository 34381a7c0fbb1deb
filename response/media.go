package response

import "github.com/hearthlink/mediavault/model"

// MediaResponse is the public shape of a Media record: internal fields
// like CachedImageVector never leave the process.
type MediaResponse struct {
	GMID          string `json:"gmid"`
	OriginalName  string `json:"original_name"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	MediaType     string `json:"media_type"`
	SizeBytes     int64  `json:"size_bytes"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	DurationMs    int64  `json:"duration_ms,omitempty"`
	UploadTime    string `json:"upload_time"`
	Description   string `json:"description,omitempty"`
	IndexState    string `json:"index_state"`
	LastError     string `json:"last_error,omitempty"`
}

// FromMedia projects a model.Media into its public response shape.
func FromMedia(m model.Media) MediaResponse {
	return MediaResponse{
		GMID:          m.GMID,
		OriginalName:  m.OriginalName,
		ThumbnailPath: m.ThumbnailPath,
		MediaType:     string(m.MediaType),
		SizeBytes:     m.SizeBytes,
		Width:         m.Width,
		Height:        m.Height,
		DurationMs:    m.DurationMs,
		UploadTime:    m.UploadTime.Format("2006-01-02T15:04:05Z07:00"),
		Description:   m.Description,
		IndexState:    string(m.IndexState),
		LastError:     m.LastError,
	}
}

// FromMediaList projects a slice of model.Media.
func FromMediaList(items []model.Media) []MediaResponse {
	out := make([]MediaResponse, 0, len(items))
	for _, m := range items {
		out = append(out, FromMedia(m))
	}
	return out
}

// MediaPage is the paged listing envelope: items plus the total count
// matching the filter across every page.
type MediaPage struct {
	Items    []MediaResponse `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// UserAuthResponse is returned on successful login.
type UserAuthResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}
