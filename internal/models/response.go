// Package models - API response types and error handling.
// All endpoints share one error envelope: machine-readable code, human
// message, optional detail map, and a trace id for support correlation.
package models

import (
	"time"
)

// DecisionResponse reports an admission decision to a calling service.
type DecisionResponse struct {
	Admitted          bool      `json:"admitted"`
	Policy            string    `json:"policy"`
	Limit             int       `json:"limit"`
	Remaining         int       `json:"remaining"`
	ResetAt           time.Time `json:"reset_at"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
	Message           string    `json:"message,omitempty"`
}

// PolicyInfo is the read representation of a policy, covering both built-in
// registry entries and persisted operator-defined records.
type PolicyInfo struct {
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	WindowMs    int64  `json:"window_ms"`
	KeyStrategy string `json:"key_strategy"`
	Message     string `json:"message"`
	BuiltIn     bool   `json:"built_in"`
}

type ListPoliciesResponse struct {
	Policies   []PolicyInfo `json:"policies"`
	TotalCount int          `json:"total_count"`
}

type CreatePolicyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdatePolicyResponse struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DeletePolicyResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// BucketStatsResponse reports live bucket store state for operators.
type BucketStatsResponse struct {
	TotalBuckets   int            `json:"total_buckets"`
	BucketsByClass map[string]int `json:"buckets_by_class"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string         `json:"error"`              // Error type (always "error")
	Message   string         `json:"message"`            // Human-readable error description
	Code      string         `json:"code,omitempty"`     // Machine-readable error code
	Details   map[string]any `json:"details,omitempty"`  // Error-specific details
	TraceID   string         `json:"trace_id,omitempty"` // Trace identifier for support
	Timestamp time.Time      `json:"timestamp"`          // Error occurrence time
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

// Standard error codes. Upper-case with underscores, machine-readable for
// client error handling.
const (
	ErrorCodeNotFound          = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest        = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest    = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeValidation        = "VALIDATION_ERROR"    // 422: Input validation failed
	ErrorCodeConflict          = "CONFLICT"            // 409: Resource conflict
	ErrorCodeInternalError     = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED" // 429: Admission denied
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitErrorResponse builds the 429 body for a denied request. The
// details carry the policy's limit and window plus the retry hint so clients
// can back off programmatically.
func NewRateLimitErrorResponse(message string, limit int, windowMs int64, retryAfterSeconds int, traceID string) *ErrorResponse {
	resp := NewErrorResponse(message, ErrorCodeRateLimitExceeded)
	resp.TraceID = traceID
	resp.Details = map[string]any{
		"limit":               limit,
		"window_ms":           windowMs,
		"retry_after_seconds": retryAfterSeconds,
	}
	return resp
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	if status != StatusHealthy && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}

// FromPolicy builds the read representation of a persisted policy record.
func (pi *PolicyInfo) FromPolicy(p *Policy) {
	pi.Name = p.Name
	pi.Capacity = p.Capacity
	pi.WindowMs = p.WindowMs
	pi.KeyStrategy = p.KeyStrategy
	pi.Message = p.Message
	pi.BuiltIn = false
}
