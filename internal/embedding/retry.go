package embedding

import (
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/retry"
)

// RetryConfig controls exponential backoff around provider calls.
type RetryConfig = retry.Config

// DefaultRetryConfig returns 3 retries starting at 1s and doubling, with a 30s
// timeout per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    30 * time.Second,
	}
}
