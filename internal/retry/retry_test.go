package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordSleeps(delays *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		maxRetries   int
		wantAttempts int
		wantErr      bool
	}{
		{"first attempt", 0, 3, 1, false},
		{"recovers", 2, 3, 3, false},
		{"exhausted", 5, 2, 3, true},
		{"no retry", 1, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			cfg := Config{MaxRetries: tt.maxRetries, BaseDelay: time.Second}
			calls := 0
			got, attempts, err := Do(context.Background(), cfg, recordSleeps(&delays), func(context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, errors.New("busy")
				}
				return 7, nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("attempts = %d, calls = %d, want %d", attempts, calls, tt.wantAttempts)
			}
			if !tt.wantErr && got != 7 {
				t.Errorf("result = %d, want 7", got)
			}
			if len(delays) != tt.wantAttempts-1 {
				t.Errorf("slept %d times, want %d", len(delays), tt.wantAttempts-1)
			}
			for i, d := range delays {
				if want := time.Second << uint(i); d != want {
					t.Errorf("delay %d = %v, want %v", i, d, want)
				}
			}
		})
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("bad key")
	calls := 0
	_, attempts, err := Do(context.Background(), Config{MaxRetries: 3}, recordSleeps(new([]time.Duration)), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(cause)
	})
	if !errors.Is(err, cause) || attempts != 1 || calls != 1 {
		t.Errorf("attempts = %d, calls = %d, err = %v", attempts, calls, err)
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{MaxRetries: 5, BaseDelay: time.Hour}

	_, attempts, err := Do(ctx, cfg, nil, func(context.Context) (int, error) { return 0, errors.New("fail") })
	if err == nil || attempts != 1 {
		t.Errorf("attempts = %d, err = %v; want 1 attempt and an error", attempts, err)
	}
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	cfg := Config{Timeout: 10 * time.Millisecond}
	_, _, err := Do(context.Background(), cfg, nil, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestBackoff(t *testing.T) {
	if d := Backoff(Config{BaseDelay: time.Second, MaxDelay: 3 * time.Second}, 5); d != 3*time.Second {
		t.Errorf("capped backoff = %v, want 3s", d)
	}
	if d := Backoff(Config{BaseDelay: time.Second}, 3); d != 8*time.Second {
		t.Errorf("uncapped backoff = %v, want 8s", d)
	}
}

func TestBackoffJitter(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Jitter: 0.25}
	for attempt := 0; attempt < 6; attempt++ {
		want := cfg.BaseDelay << uint(attempt)
		if want > cfg.MaxDelay {
			want = cfg.MaxDelay
		}
		lo, hi := want-want/4, want+want/4
		for i := 0; i < 20; i++ {
			d := Backoff(cfg, attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}
