package utils

import (
	"strings"
	"testing"
)

func TestGMIDDeterminism(t *testing.T) {
	a := GMIDBytes([]byte("hello world"))
	b := GMIDBytes([]byte("hello world"))
	if a != b {
		t.Fatalf("expected identical GMIDs for identical content, got %q and %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%q)", len(a), a)
	}
	if strings.ContainsAny(a, "ghijklmnopqrstuvwxyz") {
		t.Fatalf("expected lowercase hex only, got %q", a)
	}
}

func TestGMIDDistinctContent(t *testing.T) {
	a := GMIDBytes([]byte("hello world"))
	b := GMIDBytes([]byte("hello world!"))
	if a == b {
		t.Fatalf("expected distinct GMIDs for distinct content")
	}
}
