package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// GMID computes the Global Media Id for the given content: the hex-encoded
// SHA-256 digest of the bytes, truncated to 32 characters. Identical bytes
// always produce the same GMID regardless of filename or upload time.
func GMID(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}

// GMIDBytes is a convenience wrapper around GMID for in-memory content.
func GMIDBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:32]
}
