package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gatekeeper/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Middleware returns HTTP middleware that enforces the given policy. Rate
// limit headers are set on every response; a denied request is answered with
// 429 and a structured error body, and the downstream handler is not run.
func Middleware(admitter Admitter, policy *Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := DescriptorFromRequest(r)
			dec := admitter.Admit(r.Context(), d, policy)

			SetHeaders(w, dec)

			if !dec.Admitted {
				retryAfter := dec.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errResp := models.NewRateLimitErrorResponse(dec.Message, dec.Limit,
					policy.Window.Milliseconds(), retryAfter, TraceID(r))
				json.NewEncoder(w).Encode(errResp)

				// Expected under load, so a warning event rather than an error.
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"policy", policy.Name,
					"limit", dec.Limit,
					"retry_after", retryAfter,
					"path", r.URL.Path,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the standard rate limit headers for a decision. The
// reset header is an RFC 3339 timestamp of the window boundary.
func SetHeaders(w http.ResponseWriter, dec Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
	w.Header().Set("X-RateLimit-Reset", dec.ResetAt.UTC().Format(time.RFC3339))
}

// TraceID returns the request's trace id for error correlation, falling back
// to a fresh UUID when the request is not traced.
func TraceID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}
