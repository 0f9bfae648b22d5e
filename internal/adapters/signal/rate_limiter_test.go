package signal

import (
	"testing"
	"time"
)

func TestRateLimiterCapsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(3, 10*time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("attempt %d within limit refused", i+1)
		}
		now = now.Add(time.Second)
	}
	if rl.Allow("alice") {
		t.Fatal("fourth attempt within the window must be refused")
	}
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Second)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	rl.Allow("alice")
	if rl.Allow("alice") {
		t.Fatal("over limit")
	}

	now = base.Add(11 * time.Second)
	if !rl.Allow("alice") {
		t.Fatal("attempts outside the window must have expired")
	}
}

func TestRateLimiterIsPerPeer(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Second)
	if !rl.Allow("alice") {
		t.Fatal("alice refused")
	}
	if !rl.Allow("bob") {
		t.Fatal("one peer's flood must not affect another")
	}
}

func TestRateLimiterForget(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Second)
	rl.Allow("alice")
	if rl.Allow("alice") {
		t.Fatal("over limit")
	}
	rl.Forget("alice")
	if !rl.Allow("alice") {
		t.Fatal("forgotten peer must start fresh")
	}
}
