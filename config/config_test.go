package config

import "testing"

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TextToImageThreshold != 0.2 {
		t.Errorf("expected default text-to-image threshold 0.2, got %v", cfg.TextToImageThreshold)
	}
	if cfg.DefaultUser != "family" {
		t.Errorf("expected default user 'family', got %q", cfg.DefaultUser)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected default worker count 4, got %d", cfg.WorkerCount)
	}
}
