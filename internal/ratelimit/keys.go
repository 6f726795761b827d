package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Descriptor carries the identifying attributes of an inbound request that
// key derivation operates on. Zero values mean the attribute is unknown.
type Descriptor struct {
	Origin   string // Network address of the caller
	CallerID string // Authenticated caller identity, when present
	TenantID string // Tenant/enterprise identity, when present
}

// unknownOrigin is the sentinel key used when the network address of a
// request cannot be determined.
const unknownOrigin = "unknown"

// KeyFunc derives a rate limit accounting key from a request descriptor.
// Key functions are total: they always return a usable key and never fail.
type KeyFunc func(d Descriptor) string

// Key strategy selector names, as they appear in policy configuration.
const (
	StrategyOrigin = "origin"
	StrategyTenant = "tenant"
	StrategyCaller = "caller"
)

// ByOrigin keys by the caller's network address. Requests with no resolvable
// address share the "unknown" bucket rather than escaping limits entirely.
func ByOrigin(d Descriptor) string {
	if d.Origin == "" {
		return unknownOrigin
	}
	return d.Origin
}

// ByTenant keys by tenant identity so one noisy tenant cannot exhaust
// another's budget. Requests without a tenant fall back to an origin-scoped
// key, keeping unauthenticated endpoints protected.
func ByTenant(d Descriptor) string {
	if d.TenantID != "" {
		return "tenant:" + d.TenantID
	}
	return "origin:" + ByOrigin(d)
}

// ByCaller keys by authenticated caller identity, falling back to the
// network origin for anonymous requests.
func ByCaller(d Descriptor) string {
	if d.CallerID != "" {
		return "caller:" + d.CallerID
	}
	return ByOrigin(d)
}

// KeyFuncByName resolves a strategy selector from configuration to its
// KeyFunc. An unknown name is a configuration error, caught when the policy
// registry is built rather than per request.
func KeyFuncByName(name string) (KeyFunc, error) {
	switch name {
	case StrategyOrigin:
		return ByOrigin, nil
	case StrategyTenant:
		return ByTenant, nil
	case StrategyCaller:
		return ByCaller, nil
	default:
		return nil, fmt.Errorf("unknown key strategy: %q", name)
	}
}

type contextKey int

const (
	callerContextKey contextKey = iota
	tenantContextKey
)

// WithCaller returns a context carrying the authenticated caller id. The
// authentication layer is expected to call this for authenticated requests.
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerContextKey, callerID)
}

// CallerFromContext returns the authenticated caller id, or "" when absent.
func CallerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callerContextKey).(string)
	return id
}

// WithTenant returns a context carrying the tenant id.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// TenantFromContext returns the tenant id, or "" when absent.
func TenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantContextKey).(string)
	return id
}

// DescriptorFromRequest builds a Descriptor from an HTTP request. The tenant
// id is resolved from the route path variable first, then from the request
// context populated by the identity layer.
func DescriptorFromRequest(r *http.Request) Descriptor {
	tenantID := mux.Vars(r)["tenant_id"]
	if tenantID == "" {
		tenantID = TenantFromContext(r.Context())
	}

	return Descriptor{
		Origin:   ClientIP(r),
		CallerID: CallerFromContext(r.Context()),
		TenantID: tenantID,
	}
}

// ClientIP extracts the client address from the request, checking proxy
// headers before falling back to the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
