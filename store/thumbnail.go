package store

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/model"
)

// ErrNotImplemented is returned by thumbnailers that cannot handle a given
// media type; the pipeline treats it as an ordinary thumbnailing failure.
var ErrNotImplemented = fmt.Errorf("store: thumbnailing not implemented for this media type")

// Thumbnailer is the opaque thumbnail-rendering seam: the pipeline calls it
// without knowing or caring how the image is produced.
type Thumbnailer interface {
	// Thumbnail renders a thumbnail for the file at srcPath (of the given
	// media type) and writes it under destDir as "<gmid>.jpg", returning
	// the path it wrote.
	Thumbnail(gmid, srcPath string, mediaType model.MediaType, destDir string, width, height int) (string, error)
}

// ImagingThumbnailer renders photo thumbnails with
// github.com/disintegration/imaging. It has no video decoding capability;
// video thumbnailing is delegated to a VideoFrameExtractor, which this repo
// does not ship a default implementation for.
type ImagingThumbnailer struct {
	VideoExtractor VideoFrameExtractor
}

// VideoFrameExtractor is the seam for pulling a representative frame out of
// a video file. No default implementation ships with this repo: doing so
// would require an external decoder (e.g. ffmpeg), which is out of scope.
type VideoFrameExtractor interface {
	ExtractFrame(srcPath string) (image string, cleanup func(), err error)
}

func (t *ImagingThumbnailer) Thumbnail(gmid, srcPath string, mediaType model.MediaType, destDir string, width, height int) (string, error) {
	switch mediaType {
	case model.MediaTypePhoto:
		return t.thumbnailPhoto(gmid, srcPath, destDir, width, height)
	case model.MediaTypeVideo:
		if t.VideoExtractor == nil {
			return "", ErrNotImplemented
		}
		framePath, cleanup, err := t.VideoExtractor.ExtractFrame(srcPath)
		if err != nil {
			return "", err
		}
		defer cleanup()
		return t.thumbnailPhoto(gmid, framePath, destDir, width, height)
	default:
		return "", ErrNotImplemented
	}
}

// thumbnailPhoto writes <destDir>/<gmid>.jpg, matching the Media record's
// thumbnail_path field format regardless of the original file's name.
func (t *ImagingThumbnailer) thumbnailPhoto(gmid, srcPath, destDir string, width, height int) (string, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "store: decode image for thumbnail", err)
	}
	thumb := imaging.Fit(img, width, height, imaging.Lanczos)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.Internal, "store: create thumbnail directory", err)
	}

	destPath := filepath.Join(destDir, gmid+".jpg")

	out, err := os.Create(destPath)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "store: create thumbnail file", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", apperr.Wrap(apperr.Internal, "store: encode thumbnail", err)
	}
	return destPath, nil
}
