// Package store implements the content store (C1): date-partitioned
// storage of uploaded bytes and their thumbnails on local disk.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/model"
)

// ContentStore writes uploads under a date-partitioned directory layout
// and commits them atomically via write-to-tmp-then-rename.
type ContentStore struct {
	root                    string
	allowedPhotoExtensions  map[string]bool
	allowedVideoExtensions  map[string]bool
}

// New builds a ContentStore rooted at root, creating it if necessary.
func New(root string, allowedPhoto, allowedVideo []string) (*ContentStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create content root: %w", err)
	}
	return &ContentStore{
		root:                   root,
		allowedPhotoExtensions: toSet(allowedPhoto),
		allowedVideoExtensions: toSet(allowedVideo),
	}, nil
}

func toSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

// Saved describes a successfully committed upload.
type Saved struct {
	GMID       string
	StoredPath string
	MediaType  model.MediaType
	SizeBytes  int64
}

// Save reads an upload from r, computes its GMID, classifies it by
// extension and sniffed content type, and commits it to
// <root>/<photos|videos>/<YYYY-MM-DD>/<stem>_<unix_ts_ms>.<ext> via atomic
// rename. The millisecond timestamp makes intra-day collisions
// statistically impossible; on the rare tie a 4-hex counter is appended.
// Content-identity dedup (collapsing identical bytes onto one GMID) is the
// metadata registry's job, not the store's: the caller is expected to
// check the registry for an existing record by GMID and discard this
// commit's bytes if one is found.
func (s *ContentStore) Save(originalName string, r io.Reader, uploadTime time.Time) (Saved, error) {
	tmp, err := os.CreateTemp(s.root, "upload-*.tmp")
	if err != nil {
		return Saved{}, apperr.Wrap(apperr.Internal, "store: create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	written, gmid, err := copyAndHash(tmp, r)
	tmp.Close()
	if err != nil {
		return Saved{}, apperr.Wrap(apperr.Internal, "store: write upload", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	mediaType, ok := s.classify(ext)
	if !ok {
		return Saved{}, apperr.New(apperr.UnsupportedMediaType, fmt.Sprintf("unsupported extension %q", ext))
	}

	detected, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return Saved{}, apperr.Wrap(apperr.Internal, "store: sniff content type", err)
	}
	if !contentTypeAgrees(mediaType, detected.String()) {
		return Saved{}, apperr.New(apperr.UnsupportedMediaType,
			fmt.Sprintf("extension %q does not match detected content type %q", ext, detected.String()))
	}

	destDir := filepath.Join(s.root, mediaTypeDir(mediaType), uploadTime.Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Saved{}, apperr.Wrap(apperr.Internal, "store: create destination directory", err)
	}

	stem := sanitizeStem(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	destPath, err := commitWithCollisionRetry(tmpPath, destDir, stem, uploadTime, ext)
	if err != nil {
		return Saved{}, apperr.Wrap(apperr.Internal, "store: commit upload", err)
	}

	return Saved{GMID: gmid, StoredPath: destPath, MediaType: mediaType, SizeBytes: written}, nil
}

func mediaTypeDir(mediaType model.MediaType) string {
	if mediaType == model.MediaTypeVideo {
		return "videos"
	}
	return "photos"
}

func sanitizeStem(stem string) string {
	if stem = strings.TrimSpace(stem); stem == "" {
		return "file"
	}
	return stem
}

// commitWithCollisionRetry renames tmpPath into destDir under
// <stem>_<unix_ts_ms>.<ext>, appending a 4-hex counter on the rare
// millisecond-timestamp collision.
func commitWithCollisionRetry(tmpPath, destDir, stem string, uploadTime time.Time, ext string) (string, error) {
	base := fmt.Sprintf("%s_%d", stem, uploadTime.UnixMilli())
	destPath := filepath.Join(destDir, base+ext)

	for counter := 0; counter <= 0xffff; counter++ {
		if counter > 0 {
			destPath = filepath.Join(destDir, fmt.Sprintf("%s-%04x%s", base, counter, ext))
		}
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			if err := os.Rename(tmpPath, destPath); err != nil {
				return "", err
			}
			return destPath, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("store: exhausted collision counter for %s", base)
}

func copyAndHash(dst io.Writer, src io.Reader) (int64, string, error) {
	h := sha256.New()
	written, err := io.Copy(dst, io.TeeReader(src, h))
	if err != nil {
		return 0, "", err
	}
	gmid := hex.EncodeToString(h.Sum(nil))[:32]
	return written, gmid, nil
}

func (s *ContentStore) classify(ext string) (model.MediaType, bool) {
	if s.allowedPhotoExtensions[ext] {
		return model.MediaTypePhoto, true
	}
	if s.allowedVideoExtensions[ext] {
		return model.MediaTypeVideo, true
	}
	return "", false
}

func contentTypeAgrees(mediaType model.MediaType, detected string) bool {
	switch mediaType {
	case model.MediaTypePhoto:
		return strings.HasPrefix(detected, "image/")
	case model.MediaTypeVideo:
		return strings.HasPrefix(detected, "video/")
	default:
		return false
	}
}

// Open returns a reader over a previously stored file.
func (s *ContentStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.NotFound, "stored file not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "store: open stored file", err)
	}
	return f, nil
}

// Delete removes a stored file (and its thumbnail, if present) from disk.
func (s *ContentStore) Delete(storedPath, thumbnailPath string) error {
	if err := os.Remove(storedPath); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.Internal, "store: delete stored file", err)
	}
	if thumbnailPath != "" {
		if err := os.Remove(thumbnailPath); err != nil && !os.IsNotExist(err) {
			return apperr.Wrap(apperr.Internal, "store: delete thumbnail", err)
		}
	}
	return nil
}
