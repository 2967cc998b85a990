package retry

import "time"

// Policy defines the backoff schedule for failed execution attempts.
type Policy struct {
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration

	// MaxAttempts is the total number of attempts allowed.
	// Zero means a single attempt with no retries.
	MaxAttempts int
}

// DefaultPolicy returns the standard backoff schedule.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 3,
	}
}

// Delay returns the backoff before the attempt following the given one:
// BaseDelay doubled per prior failure, capped at MaxDelay. Attempt counts
// start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	// Past 62 doublings the shift would overflow int64.
	if shift > 62 {
		return p.MaxDelay
	}
	d := p.BaseDelay << shift
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether the given attempt count has used up the
// budget. No further retries are scheduled once it returns true.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
