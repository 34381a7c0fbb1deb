package pipeline

import "testing"

func TestBackoffWithJitterGrowsAndCaps(t *testing.T) {
	prev := backoffWithJitter(1)
	for attempt := 2; attempt < 10; attempt++ {
		d := backoffWithJitter(attempt)
		if d <= 0 {
			t.Fatalf("expected positive backoff, got %v", d)
		}
		if d > 45*1e9 {
			t.Fatalf("expected backoff to stay capped, got %v", d)
		}
		// Below the 30s base cap (attempts up to 7) each step at least
		// doubles the base, which outruns the previous step's jitter.
		if attempt <= 7 && d <= prev {
			t.Fatalf("expected backoff to grow at attempt %d, got %v after %v", attempt, d, prev)
		}
		prev = d
	}
	_ = prev
}
