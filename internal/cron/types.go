// Package cron runs the retention sweep on a cron schedule.
//
// Schedules are standard 5-field cron expressions parsed by gronx, e.g.
// "*/15 * * * *" to sweep expired TEMPORARY memories every quarter hour.
package cron

import (
	"context"
	"time"
)

// SweepFunc removes records that expired at or before now and reports how
// many were removed.
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// RunLogEntry records one sweep.
type RunLogEntry struct {
	Ts       time.Time     `json:"ts"`
	Status   string        `json:"status"` // "ok" or "error"
	Removed  int           `json:"removed"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Status describes the scheduler for diagnostics.
type Status struct {
	Running   bool         `json:"running"`
	Schedule  string       `json:"schedule"`
	NextRunAt *time.Time   `json:"nextRunAt,omitempty"`
	LastRun   *RunLogEntry `json:"lastRun,omitempty"`
}

const maxRunLog = 50
