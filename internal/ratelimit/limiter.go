// Package ratelimit provides per-key token bucket admission control for HTTP
// requests. Each key gets a bucket that refills continuously at a fixed rate;
// a request is admitted when a token is available. The package includes key
// derivation strategies (caller, tenant, network origin), a policy registry
// for distinct traffic classes, and HTTP middleware that sets standard rate
// limit response headers and fails open on internal errors.
package ratelimit

import (
	"context"
	"time"
)

// Admitter decides whether a request described by a Descriptor is admitted
// under a policy. Implementations must be safe for concurrent use.
type Admitter interface {
	// Admit attempts to consume one token from the bucket identified by the
	// policy's key strategy. It never returns an error: internal failures
	// produce an admitted decision (fail open).
	Admit(ctx context.Context, d Descriptor, p *Policy) Decision
}

// Decision is the outcome of an admission check, carrying the metadata used
// to populate rate limit response headers and deny bodies.
type Decision struct {
	Admitted   bool
	Limit      int           // Bucket capacity
	Remaining  int           // Whole tokens left after this check
	ResetAt    time.Time     // End of the current policy window
	RetryAfter time.Duration // Wait until the next token (meaningful only when denied)
	Message    string        // Policy deny text (set only when denied)
	FailedOpen bool          // True when admitted due to an internal error
}

// RetryAfterSeconds returns the Retry-After hint in whole seconds, rounded
// up so a client never retries before a token is available. Zero when the
// request was admitted.
func (d Decision) RetryAfterSeconds() int {
	if d.Admitted || d.RetryAfter <= 0 {
		return 0
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
