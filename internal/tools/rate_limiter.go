package tools

import (
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// ToolRateLimiter implements a sliding window rate limiter for tool executions.
// Tracks calls per key (the tool name) within a one hour window.
type ToolRateLimiter struct {
	mu       sync.Mutex
	windows  map[string][]time.Time
	maxPerHr int
	window   time.Duration
	now      func() time.Time
}

// NewToolRateLimiter creates a rate limiter with the given max calls per hour.
// Pass 0 to disable rate limiting.
func NewToolRateLimiter(maxPerHour int) *ToolRateLimiter {
	if maxPerHour <= 0 {
		return nil
	}
	return &ToolRateLimiter{
		windows:  make(map[string][]time.Time),
		maxPerHr: maxPerHour,
		window:   time.Hour,
		now:      time.Now,
	}
}

// Allow records a call for key, or returns an error wrapping
// protocol.ErrRateLimited when the window is full.
func (rl *ToolRateLimiter) Allow(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entries := prune(rl.windows[key], now.Add(-rl.window))

	if len(entries) >= rl.maxPerHr {
		rl.windows[key] = entries
		return fmt.Errorf("%w: %d calls/hour for %s", protocol.ErrRateLimited, rl.maxPerHr, key)
	}
	rl.windows[key] = append(entries, now)
	return nil
}

// Cleanup removes stale entries older than the window. Call periodically to prevent memory growth.
func (rl *ToolRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, entries := range rl.windows {
		if entries = prune(entries, cutoff); len(entries) == 0 {
			delete(rl.windows, key)
		} else {
			rl.windows[key] = entries
		}
	}
}

func prune(entries []time.Time, cutoff time.Time) []time.Time {
	start := 0
	for start < len(entries) && entries[start].Before(cutoff) {
		start++
	}
	return entries[start:]
}
