package cron

import (
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/retry"
)

// RetryConfig controls exponential backoff for failed sweeps.
type RetryConfig = retry.Config

// DefaultRetryConfig returns the retry policy used by NewService: 2 retries
// from 2s, capped at 30s, with ±25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.25,
	}
}
