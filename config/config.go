// Package config loads the immutable runtime configuration for mediavault
// from environment variables once at startup. Nothing else in the repo
// reads the environment directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is loaded once in cmd/server/main.go and threaded through the
// rest of the app via app.Context. There is no package-level singleton.
type Config struct {
	ContentRoot string

	VectorDBURL       string
	VectorCollection   string
	VectorDimension    int
	FixDimensionOnMismatch bool

	EmbeddingBaseURL string
	EmbeddingKey     string

	JWTSecret string

	DefaultUser     string
	DefaultPassword string

	WorkerCount int
	QueueSize   int

	MaxUploadSize          int64
	AllowedPhotoExtensions []string
	AllowedVideoExtensions []string
	ThumbnailWidth         int
	ThumbnailHeight        int

	TextToTextThreshold  float64
	TextToImageThreshold float64
	ImageToImageThreshold float64

	EmbedTextRatePerSec  float64
	EmbedImageRatePerSec float64
	EmbedMaxRetries      int
	EmbedCallTimeout     time.Duration

	RequireIndexOnStart bool
	ShutdownGrace       time.Duration

	HTTPAddr string
}

// Load reads Config from the process environment, falling back to the
// defaults spec.md prescribes for anything unset.
func Load() (Config, error) {
	cfg := Config{
		ContentRoot: getenv("CONTENT_ROOT", "./data"),

		VectorDBURL:            getenv("VECTOR_DB_URL", "localhost:6334"),
		VectorCollection:       getenv("VECTOR_COLLECTION", "media_embeddings"),
		VectorDimension:        getenvInt("VECTOR_DIMENSION", 1024),
		FixDimensionOnMismatch: getenvBool("FIX_DIMENSION_ON_MISMATCH", false),

		EmbeddingBaseURL: getenv("EMBEDDING_PROVIDER_URL", "http://localhost:9000"),
		EmbeddingKey:     getenv("EMBEDDING_PROVIDER_KEY", ""),

		JWTSecret: getenv("JWT_SECRET", ""),

		DefaultUser:     getenv("DEFAULT_USER", "family"),
		DefaultPassword: getenv("DEFAULT_PASSWORD", "123456"),

		WorkerCount: getenvInt("WORKER_COUNT", 4),
		QueueSize:   getenvInt("QUEUE_SIZE", 1024),

		MaxUploadSize:           getenvInt64("MAX_UPLOAD_SIZE", 500*1024*1024),
		AllowedPhotoExtensions:  getenvList("ALLOWED_PHOTO_EXTENSIONS", []string{".jpg", ".jpeg", ".png", ".heic", ".webp"}),
		AllowedVideoExtensions:  getenvList("ALLOWED_VIDEO_EXTENSIONS", []string{".mp4", ".mov", ".hevc", ".avi"}),
		ThumbnailWidth:          getenvInt("THUMBNAIL_WIDTH", 300),
		ThumbnailHeight:         getenvInt("THUMBNAIL_HEIGHT", 300),

		TextToTextThreshold:   getenvFloat("TEXT_TO_TEXT_THRESHOLD", 0.8),
		TextToImageThreshold:  getenvFloat("TEXT_TO_IMAGE_THRESHOLD", 0.2),
		ImageToImageThreshold: getenvFloat("IMAGE_TO_IMAGE_THRESHOLD", 0.5),

		EmbedTextRatePerSec:  getenvFloat("EMBED_TEXT_RATE", 10),
		EmbedImageRatePerSec: getenvFloat("EMBED_IMAGE_RATE", 5),
		EmbedMaxRetries:      getenvInt("EMBED_MAX_RETRIES", 3),
		EmbedCallTimeout:     time.Duration(getenvInt("EMBED_CALL_TIMEOUT_SECONDS", 30)) * time.Second,

		RequireIndexOnStart: getenvBool("REQUIRE_INDEX_ON_START", true),
		ShutdownGrace:       time.Duration(getenvInt("SHUTDOWN_GRACE_SECONDS", 20)) * time.Second,

		HTTPAddr: getenv("HTTP_ADDR", ":5000"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET must be set")
	}
	if cfg.VectorDimension <= 0 {
		return Config{}, fmt.Errorf("config: VECTOR_DIMENSION must be positive, got %d", cfg.VectorDimension)
	}
	if cfg.WorkerCount <= 0 {
		return Config{}, fmt.Errorf("config: WORKER_COUNT must be positive, got %d", cfg.WorkerCount)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
