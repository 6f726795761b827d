package ratelimit

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByOrigin(t *testing.T) {
	assert.Equal(t, "10.0.0.1", ByOrigin(Descriptor{Origin: "10.0.0.1"}))
	assert.Equal(t, "unknown", ByOrigin(Descriptor{}))
}

func TestByTenant(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{"tenant present", Descriptor{TenantID: "acme", Origin: "10.0.0.1"}, "tenant:acme"},
		{"fallback to origin", Descriptor{Origin: "10.0.0.1"}, "origin:10.0.0.1"},
		{"fallback to unknown origin", Descriptor{}, "origin:unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ByTenant(tt.d))
		})
	}
}

func TestByCaller(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want string
	}{
		{"caller present", Descriptor{CallerID: "svc-a", Origin: "10.0.0.1"}, "caller:svc-a"},
		{"fallback to origin", Descriptor{Origin: "10.0.0.1"}, "10.0.0.1"},
		{"fallback to unknown origin", Descriptor{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ByCaller(tt.d))
		})
	}
}

func TestKeyFuncByName(t *testing.T) {
	d := Descriptor{Origin: "10.0.0.1", CallerID: "svc-a", TenantID: "acme"}

	fn, err := KeyFuncByName(StrategyOrigin)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", fn(d))

	fn, err = KeyFuncByName(StrategyTenant)
	require.NoError(t, err)
	assert.Equal(t, "tenant:acme", fn(d))

	fn, err = KeyFuncByName(StrategyCaller)
	require.NoError(t, err)
	assert.Equal(t, "caller:svc-a", fn(d))

	_, err = KeyFuncByName("geography")
	assert.Error(t, err)
}

func TestCallerAndTenantContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CallerFromContext(ctx))
	assert.Empty(t, TenantFromContext(ctx))

	ctx = WithCaller(ctx, "svc-a")
	ctx = WithTenant(ctx, "acme")
	assert.Equal(t, "svc-a", CallerFromContext(ctx))
	assert.Equal(t, "acme", TenantFromContext(ctx))
}

func TestDescriptorFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/policies", nil)
	r.RemoteAddr = "10.0.0.1:52114"
	r = r.WithContext(WithCaller(r.Context(), "svc-a"))
	r = r.WithContext(WithTenant(r.Context(), "acme"))

	d := DescriptorFromRequest(r)
	assert.Equal(t, "10.0.0.1:52114", d.Origin)
	assert.Equal(t, "svc-a", d.CallerID)
	assert.Equal(t, "acme", d.TenantID)
}

func TestDescriptorFromRequest_PathVariableWins(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/tenants/globex/things", nil)
	r = r.WithContext(WithTenant(r.Context(), "acme"))
	r = mux.SetURLVars(r, map[string]string{"tenant_id": "globex"})

	d := DescriptorFromRequest(r)
	assert.Equal(t, "globex", d.TenantID)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.10:40000"
	assert.Equal(t, "192.168.1.10:40000", ClientIP(r))

	r.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	// X-Forwarded-For takes precedence; first entry is the client
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 203.0.113.9")
	assert.Equal(t, "198.51.100.4", ClientIP(r))
}
