package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Controller performs admission checks against a bucket store. It implements
// Admitter and contains no per-request state: each check is independent
// given the current bucket snapshot.
type Controller struct {
	store *Store
}

// NewController creates an admission controller backed by the given store.
func NewController(store *Store) *Controller {
	return &Controller{store: store}
}

// Admit derives the bucket key for the request, consumes one token, and
// returns the decision with its header metadata. Throttling must never be a
// single point of total failure, so any internal error during the check is
// logged and converted to an admitted decision.
func (c *Controller) Admit(ctx context.Context, d Descriptor, p *Policy) (dec Decision) {
	now := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "Admission check failed; failing open",
				"policy", policyName(p),
				"error", rec,
			)
			dec = failOpen(p, now)
		}
	}()

	if p == nil {
		slog.ErrorContext(ctx, "Admission check invoked without a policy; failing open")
		return failOpen(nil, now)
	}

	key := p.bucketKey(d)
	bucket := c.store.GetOrCreate(key, p.Capacity, p.RefillRate())
	admitted := bucket.Consume(now)

	dec = Decision{
		Admitted: admitted,
		Limit:    p.Capacity,
		ResetAt:  now.Add(p.Window),
	}

	if admitted {
		dec.Remaining = bucket.AvailableTokens(now)
		return dec
	}

	dec.Remaining = 0
	dec.RetryAfter = time.Duration(bucket.SecondsUntilNextToken(now) * float64(time.Second))
	dec.Message = p.Message
	return dec
}

// failOpen builds the admit decision used when the check itself failed.
// Remaining is reported as the full capacity since no token was consumed.
func failOpen(p *Policy, now time.Time) Decision {
	dec := Decision{
		Admitted:   true,
		FailedOpen: true,
	}
	if p != nil {
		dec.Limit = p.Capacity
		dec.Remaining = p.Capacity
		dec.ResetAt = now.Add(p.Window)
	}
	return dec
}

func policyName(p *Policy) string {
	if p == nil {
		return ""
	}
	return p.Name
}
