package loader

import "time"

type actionKind int

const (
	actionRetry actionKind = iota
	actionRetryResetErrorCount
	actionDontRetry
	actionDontRetryFatal
)

// ErrorAction tells the loader what to do after a failed attempt.
type ErrorAction struct {
	kind  actionKind
	delay time.Duration
	// explicit is set when delay replaces the default backoff, zero included.
	explicit bool
}

var (
	// Retry retries with the default backoff.
	Retry = ErrorAction{kind: actionRetry}
	// RetryResetErrorCount retries with the default backoff, counting errors from one again.
	RetryResetErrorCount = ErrorAction{kind: actionRetryResetErrorCount}
	// DontRetry gives up. The error is not kept, so MaybeThrowError will not return it.
	DontRetry = ErrorAction{kind: actionDontRetry}
	// DontRetryFatal gives up and keeps the error, which MaybeThrowError returns from then on.
	DontRetryFatal = ErrorAction{kind: actionDontRetryFatal}
)

// RetryAfter retries after delay instead of the default backoff.
func RetryAfter(resetErrorCount bool, delay time.Duration) ErrorAction {
	if resetErrorCount {
		return ErrorAction{kind: actionRetryResetErrorCount, delay: delay, explicit: true}
	}
	return ErrorAction{kind: actionRetry, delay: delay, explicit: true}
}

// IsRetry reports whether the action retries.
func (a ErrorAction) IsRetry() bool {
	return a.kind == actionRetry || a.kind == actionRetryResetErrorCount
}

func (a ErrorAction) String() string {
	switch a.kind {
	case actionRetryResetErrorCount:
		return "retry-reset"
	case actionDontRetry:
		return "dont-retry"
	case actionDontRetryFatal:
		return "dont-retry-fatal"
	default:
		return "retry"
	}
}

const (
	retryStep     = time.Second
	maxRetryDelay = 5 * time.Second
)

// RetryDelay is the default backoff: one second per previous error, capped at five.
func RetryDelay(errorCount int) time.Duration {
	delay := time.Duration(errorCount-1) * retryStep
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
