package observability

import (
	"context"
	"testing"
	"time"

	"gatekeeper/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdmitter struct {
	decision ratelimit.Decision
	gotDesc  ratelimit.Descriptor
}

func (s *stubAdmitter) Admit(_ context.Context, d ratelimit.Descriptor, _ *ratelimit.Policy) ratelimit.Decision {
	s.gotDesc = d
	return s.decision
}

func TestInstrumentedAdmitter_PassesDecisionThrough(t *testing.T) {
	tests := []struct {
		name     string
		decision ratelimit.Decision
	}{
		{
			name:     "admitted",
			decision: ratelimit.Decision{Admitted: true, Limit: 100, Remaining: 99},
		},
		{
			name: "denied",
			decision: ratelimit.Decision{
				Admitted:   false,
				Limit:      100,
				RetryAfter: 12 * time.Second,
				Message:    "Rate limit exceeded",
			},
		},
		{
			name:     "fail open",
			decision: ratelimit.Decision{Admitted: true, FailedOpen: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAdmitter{decision: tt.decision}
			admitter, err := NewInstrumentedAdmitter(stub)
			require.NoError(t, err)

			policy, err := ratelimit.NewPolicy("checkout", 100, time.Minute, ratelimit.StrategyCaller, "")
			require.NoError(t, err)

			desc := ratelimit.Descriptor{CallerID: "svc-a"}
			got := admitter.Admit(context.Background(), desc, policy)

			assert.Equal(t, tt.decision, got, "instrumentation must not alter the decision")
			assert.Equal(t, desc, stub.gotDesc)
		})
	}
}

func TestInstrumentedAdmitter_NilPolicy(t *testing.T) {
	stub := &stubAdmitter{decision: ratelimit.Decision{Admitted: true, FailedOpen: true}}
	admitter, err := NewInstrumentedAdmitter(stub)
	require.NoError(t, err)

	got := admitter.Admit(context.Background(), ratelimit.Descriptor{}, nil)
	assert.True(t, got.FailedOpen)
}

func TestInstrumentedAdmitter_RealController(t *testing.T) {
	buckets := ratelimit.NewStore(ratelimit.WithSweepInterval(0))
	t.Cleanup(buckets.Shutdown)

	admitter, err := NewInstrumentedAdmitter(ratelimit.NewController(buckets))
	require.NoError(t, err)

	policy, err := ratelimit.NewPolicy("tiny", 1, time.Minute, ratelimit.StrategyCaller, "")
	require.NoError(t, err)

	desc := ratelimit.Descriptor{CallerID: "svc-a"}
	assert.True(t, admitter.Admit(context.Background(), desc, policy).Admitted)
	assert.False(t, admitter.Admit(context.Background(), desc, policy).Admitted)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "admitted", outcomeLabel(ratelimit.Decision{Admitted: true}))
	assert.Equal(t, "denied", outcomeLabel(ratelimit.Decision{Admitted: false}))
	assert.Equal(t, "fail_open", outcomeLabel(ratelimit.Decision{Admitted: true, FailedOpen: true}))
}
