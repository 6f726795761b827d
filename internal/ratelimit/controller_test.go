package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(t *testing.T, name string, capacity int, window time.Duration, strategy string) *Policy {
	t.Helper()
	p, err := NewPolicy(name, capacity, window, strategy, "")
	require.NoError(t, err)
	return p
}

func TestController_Admit(t *testing.T) {
	c := NewController(newTestStore(t))
	p := testPolicy(t, "p", 3, time.Minute, StrategyCaller)
	d := Descriptor{CallerID: "svc-a"}

	for i := 3; i > 0; i-- {
		dec := c.Admit(context.Background(), d, p)
		assert.True(t, dec.Admitted)
		assert.Equal(t, 3, dec.Limit)
		assert.Equal(t, i-1, dec.Remaining)
		assert.False(t, dec.ResetAt.IsZero())
		assert.False(t, dec.FailedOpen)
	}
}

func TestController_Admit_Denied(t *testing.T) {
	c := NewController(newTestStore(t))
	p := testPolicy(t, "p", 2, time.Minute, StrategyCaller)
	d := Descriptor{CallerID: "svc-a"}

	c.Admit(context.Background(), d, p)
	c.Admit(context.Background(), d, p)

	dec := c.Admit(context.Background(), d, p)
	assert.False(t, dec.Admitted)
	assert.Equal(t, 2, dec.Limit)
	assert.Zero(t, dec.Remaining)
	assert.Greater(t, dec.RetryAfter, time.Duration(0))
	assert.Equal(t, "Rate limit exceeded", dec.Message)
}

func TestController_Admit_RetryAfterHint(t *testing.T) {
	// Capacity 5 over 60s regenerates one token every 12 seconds
	c := NewController(newTestStore(t))
	p := testPolicy(t, "p", 5, time.Minute, StrategyCaller)
	d := Descriptor{CallerID: "svc-a"}

	for i := 0; i < 5; i++ {
		require.True(t, c.Admit(context.Background(), d, p).Admitted)
	}

	dec := c.Admit(context.Background(), d, p)
	require.False(t, dec.Admitted)
	assert.InDelta(t, 12.0, dec.RetryAfter.Seconds(), 1.0)
	assert.Equal(t, 12, dec.RetryAfterSeconds())
}

func TestController_Admit_IsolatesCallers(t *testing.T) {
	c := NewController(newTestStore(t))
	p := testPolicy(t, "p", 1, time.Minute, StrategyCaller)

	require.True(t, c.Admit(context.Background(), Descriptor{CallerID: "noisy"}, p).Admitted)
	require.False(t, c.Admit(context.Background(), Descriptor{CallerID: "noisy"}, p).Admitted)

	assert.True(t, c.Admit(context.Background(), Descriptor{CallerID: "quiet"}, p).Admitted)
}

func TestController_Admit_IsolatesPolicies(t *testing.T) {
	// Two policies deriving identical keys from the same request must not
	// drain each other's buckets.
	c := NewController(newTestStore(t))
	a := testPolicy(t, "a", 1, time.Minute, StrategyOrigin)
	b := testPolicy(t, "b", 1, time.Minute, StrategyOrigin)
	d := Descriptor{Origin: "10.0.0.1"}

	require.True(t, c.Admit(context.Background(), d, a).Admitted)
	require.False(t, c.Admit(context.Background(), d, a).Admitted)

	assert.True(t, c.Admit(context.Background(), d, b).Admitted)
}

func TestController_Admit_NilPolicyFailsOpen(t *testing.T) {
	c := NewController(newTestStore(t))

	dec := c.Admit(context.Background(), Descriptor{CallerID: "svc-a"}, nil)
	assert.True(t, dec.Admitted)
	assert.True(t, dec.FailedOpen)
}

func TestController_Admit_PanicFailsOpen(t *testing.T) {
	c := NewController(newTestStore(t))

	// A policy that never passed validation has no key function; deriving the
	// bucket key panics and the check must fail open rather than deny.
	broken := &Policy{Name: "broken", Capacity: 5, Window: time.Minute}

	dec := c.Admit(context.Background(), Descriptor{CallerID: "svc-a"}, broken)
	assert.True(t, dec.Admitted)
	assert.True(t, dec.FailedOpen)
	assert.Equal(t, 5, dec.Limit)
	assert.Equal(t, 5, dec.Remaining)
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	assert.Zero(t, Decision{Admitted: true}.RetryAfterSeconds())
	assert.Zero(t, Decision{Admitted: false}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 12, Decision{RetryAfter: 12 * time.Second}.RetryAfterSeconds())
	assert.Equal(t, 13, Decision{RetryAfter: 12*time.Second + time.Millisecond}.RetryAfterSeconds())
}
