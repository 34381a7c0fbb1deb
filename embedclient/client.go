// Package embedclient implements the embedding client (C3): a rate
// limited, retrying, timeout-bounded wrapper around an opaque embedding
// provider HTTP endpoint.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

// Config carries the per-modality rate limits and retry/timeout policy.
type Config struct {
	BaseURL      string
	APIKey       string
	TextRatePerSec  float64
	ImageRatePerSec float64
	MaxRetries      int
	CallTimeout     time.Duration
}

// Client calls the embedding provider's opaque /embed/text and
// /embed/image routes, enforcing a per-modality token bucket, bounded
// exponential backoff with jitter, and a per-call deadline.
type Client struct {
	cfg Config
	hc  *http.Client

	textLimiter  *rate.Limiter
	imageLimiter *rate.Limiter

	// dimMu guards dimension, the vector length established by the first
	// successful response; every later response is asserted against it.
	dimMu     sync.Mutex
	dimension int
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	textRate := cfg.TextRatePerSec
	if textRate <= 0 {
		textRate = 10
	}
	imageRate := cfg.ImageRatePerSec
	if imageRate <= 0 {
		imageRate = 5
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{},
		// Burst equals the rate, matching spec.md's default burst=rate.
		textLimiter:  rate.NewLimiter(rate.Limit(textRate), int(textRate)),
		imageLimiter: rate.NewLimiter(rate.Limit(imageRate), int(imageRate)),
	}
}

type embedRequest struct {
	Text  string `json:"text,omitempty"`
	Image []byte `json:"image,omitempty"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// EmbedText computes a text embedding vector, blocking on the text rate
// limiter and retrying transient failures with backoff.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := c.textLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return c.embed(ctx, "/embed/text", embedRequest{Text: text})
}

// EmbedImage computes an image embedding vector from raw image bytes,
// blocking on the image rate limiter and retrying transient failures with
// backoff.
func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if err := c.imageLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return c.embed(ctx, "/embed/image", embedRequest{Image: image})
}

func (c *Client) embed(ctx context.Context, route string, body embedRequest) ([]float32, error) {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var vector []float32
	err := retry.Do(
		func() error {
			v, err := c.call(ctx, route, body)
			if err != nil {
				return err
			}
			vector = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool {
			// Only transient and timeout failures are worth retrying;
			// rejections and rate limits need a different response from
			// the caller, not a hammering retry loop.
			return err == ErrTransient || err == ErrTimeout
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("embedclient: retrying call", "route", route, "attempt", n, "err", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (c *Client) call(ctx context.Context, route string, body embedRequest) ([]float32, error) {
	timeout := c.cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedclient: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+route, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, ErrTransient
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// 429 is a retryable rate-limit signal from the provider, not the
		// non-retryable rejection other 4xx codes are.
		return nil, ErrTransient
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrRejected
	case resp.StatusCode >= 500:
		return nil, ErrTransient
	case resp.StatusCode != http.StatusOK:
		return nil, ErrRejected
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrTransient
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, ErrRejected
	}

	if err := c.assertDimension(len(out.Vector)); err != nil {
		return nil, err
	}

	return normalizeUnit(out.Vector), nil
}

// assertDimension records the vector length of the first successful
// response as the collection's dimension and rejects any later response
// that disagrees with it.
func (c *Client) assertDimension(got int) error {
	c.dimMu.Lock()
	defer c.dimMu.Unlock()
	if c.dimension == 0 {
		c.dimension = got
		return nil
	}
	if got != c.dimension {
		return fmt.Errorf("%w: got %d, established %d", ErrDimensionMismatch, got, c.dimension)
	}
	return nil
}

// normalizeUnit rescales v to unit length so cosine similarity against
// other normalized vectors reduces to a dot product.
func normalizeUnit(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
