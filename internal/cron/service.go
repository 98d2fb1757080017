package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/gomemory/internal/retry"
)

// DefaultSchedule sweeps at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Service runs a SweepFunc whenever its cron expression comes due.
type Service struct {
	sweep    SweepFunc
	retryCfg RetryConfig
	logger   *slog.Logger
	tick     time.Duration
	now      func() time.Time

	mu       sync.Mutex
	expr     string
	nextRun  *time.Time
	running  bool
	stopChan chan struct{}
	done     chan struct{}
	runLog   []RunLogEntry
}

// NewService validates expr and returns a stopped service.
func NewService(expr string, sweep SweepFunc, logger *slog.Logger) (*Service, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	if err := ValidateSchedule(expr); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sweep:    sweep,
		retryCfg: DefaultRetryConfig(),
		logger:   logger,
		tick:     time.Second,
		now:      time.Now,
		expr:     expr,
	}, nil
}

// ValidateSchedule reports whether expr is a valid cron expression.
func ValidateSchedule(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression: %q", expr)
	}
	return nil
}

// SetRetryConfig overrides the default retry configuration.
func (cs *Service) SetRetryConfig(cfg RetryConfig) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.retryCfg = cfg
}

// SetSchedule swaps the cron expression and recomputes the next run.
func (cs *Service) SetSchedule(expr string) error {
	if err := ValidateSchedule(expr); err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if expr == cs.expr {
		return nil
	}
	cs.expr = expr
	if cs.running {
		cs.nextRun = cs.computeNextRun(cs.now())
	}
	cs.logger.Info("retention schedule changed", "schedule", expr)
	return nil
}

// Start begins the scheduling loop.
func (cs *Service) Start() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.running {
		return nil
	}
	cs.nextRun = cs.computeNextRun(cs.now())
	cs.stopChan = make(chan struct{})
	cs.done = make(chan struct{})
	cs.running = true

	go cs.runLoop(cs.stopChan, cs.done)

	cs.logger.Info("retention sweeper started", "schedule", cs.expr, "next_run", cs.nextRun)
	return nil
}

// Stop halts the scheduling loop and waits for an in-flight sweep.
func (cs *Service) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	close(cs.stopChan)
	cs.running = false
	done := cs.done
	cs.mu.Unlock()

	<-done
	cs.logger.Info("retention sweeper stopped")
}

// RunNow sweeps immediately, outside the schedule.
func (cs *Service) RunNow(ctx context.Context) (int, error) {
	entry := cs.execute(ctx)
	if entry.Status == "error" {
		return entry.Removed, fmt.Errorf("retention sweep: %s", entry.Error)
	}
	return entry.Removed, nil
}

// Status returns the service status.
func (cs *Service) Status() Status {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	st := Status{Running: cs.running, Schedule: cs.expr}
	if cs.nextRun != nil {
		t := *cs.nextRun
		st.NextRunAt = &t
	}
	if n := len(cs.runLog); n > 0 {
		last := cs.runLog[n-1]
		st.LastRun = &last
	}
	return st
}

// RunLog returns up to limit recent sweeps, newest first.
func (cs *Service) RunLog(limit int) []RunLogEntry {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if limit <= 0 || limit > len(cs.runLog) {
		limit = len(cs.runLog)
	}
	out := make([]RunLogEntry, 0, limit)
	for i := len(cs.runLog) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cs.runLog[i])
	}
	return out
}

// --- Internal scheduling loop ---

func (cs *Service) runLoop(stopChan, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(cs.tick)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopChan
		cancel()
	}()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			if cs.due() {
				cs.execute(ctx)
			}
		}
	}
}

// due reports whether the next run has arrived and, if so, clears it to
// prevent a duplicate execution.
func (cs *Service) due() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.nextRun == nil || cs.nextRun.After(cs.now()) {
		return false
	}
	cs.nextRun = nil
	return true
}

func (cs *Service) execute(ctx context.Context) RunLogEntry {
	cs.mu.Lock()
	cfg := cs.retryCfg
	cs.mu.Unlock()

	started := cs.now()
	removed, attempts, err := retry.Do(ctx, cfg, nil, func(ctx context.Context) (int, error) {
		return cs.sweep(ctx, cs.now().UTC())
	})
	entry := RunLogEntry{
		Ts:       started,
		Status:   "ok",
		Removed:  removed,
		Attempts: attempts,
		Duration: cs.now().Sub(started),
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
		cs.logger.Error("retention sweep failed", "attempts", attempts, "error", err)
	} else {
		cs.logger.Debug("retention sweep completed", "removed", removed, "attempts", attempts)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.runLog = append(cs.runLog, entry)
	if len(cs.runLog) > maxRunLog {
		cs.runLog = cs.runLog[len(cs.runLog)-maxRunLog:]
	}
	if cs.running {
		cs.nextRun = cs.computeNextRun(cs.now())
	}
	return entry
}

// --- Schedule computation ---

func (cs *Service) computeNextRun(now time.Time) *time.Time {
	next, err := gronx.NextTickAfter(cs.expr, now, false)
	if err != nil {
		cs.logger.Error("cron: failed to compute next run", "expr", cs.expr, "error", err)
		return nil
	}
	return &next
}
