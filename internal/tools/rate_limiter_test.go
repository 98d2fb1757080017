package tools

import (
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

func TestNewToolRateLimiter_Disabled(t *testing.T) {
	for _, n := range []int{0, -5} {
		if rl := NewToolRateLimiter(n); rl != nil {
			t.Errorf("NewToolRateLimiter(%d) = %v, want nil", n, rl)
		}
	}
}

func TestToolRateLimiter_BlocksOverLimitPerKey(t *testing.T) {
	rl := NewToolRateLimiter(2)

	for i := 0; i < 2; i++ {
		if err := rl.Allow("semantic_search"); err != nil {
			t.Fatalf("call %d should be allowed: %v", i, err)
		}
	}
	err := rl.Allow("semantic_search")
	if !errors.Is(err, protocol.ErrRateLimited) {
		t.Errorf("third call err = %v, want ErrRateLimited", err)
	}
	if err := rl.Allow("read_memories"); err != nil {
		t.Errorf("other key should be independent: %v", err)
	}
}

func TestToolRateLimiter_WindowSlides(t *testing.T) {
	rl := NewToolRateLimiter(1)
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	if err := rl.Allow("k"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow("k"); err == nil {
		t.Fatal("second call inside the window should fail")
	}

	clock = clock.Add(61 * time.Minute)
	if err := rl.Allow("k"); err != nil {
		t.Errorf("call after the window should pass: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	rl.Cleanup()
	if len(rl.windows) != 0 {
		t.Errorf("stale keys kept: %v", rl.windows)
	}
}
