package relay

import (
	"fmt"
	"time"
)

// ConfigurationError reports a Step or client misconfiguration detected
// before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("relay: configuration error: %s: %s", e.Field, e.Reason)
}

// TransportError reports a connection-level failure reaching either the
// target URL or the submission endpoint. It triggers fallback handling
// instead of aborting the execution.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("relay: transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError reports that the service rate-limited the submission. It is
// surfaced to the caller and never triggers fallback attempts: the submission
// path itself is working.
type RateLimitError struct {
	RetryAt time.Time
	Message string
}

func (e *RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("relay: rate limited: %s", e.Message)
	}
	return fmt.Sprintf("relay: rate limited until %s: %s", e.RetryAt.Format(time.RFC3339), e.Message)
}

// RejectionError reports that the service explicitly declined the job.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("relay: job rejected (status %d): %s", e.StatusCode, e.Message)
}
