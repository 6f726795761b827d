package storage

import (
	"context"
	"testing"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStorage(Config{Type: "memory"})
	require.NoError(t, err)
	defer s.Close()

	// Empty store
	policies, err := s.Policies(ctx)
	require.NoError(t, err)
	assert.Empty(t, policies)

	_, err = s.GetPolicy(ctx, "search")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	// Save and read back
	p := models.NewPolicy("search", 30, 60000, "tenant", "Search limit exceeded")
	require.NoError(t, s.SavePolicy(ctx, p))

	got, err := s.GetPolicy(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 30, got.Capacity)

	// Upsert by name
	p.Capacity = 60
	require.NoError(t, s.SavePolicy(ctx, p))
	got, err = s.GetPolicy(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, 60, got.Capacity)

	// Delete
	require.NoError(t, s.DeletePolicy(ctx, "search"))
	assert.ErrorIs(t, s.DeletePolicy(ctx, "search"), ErrPolicyNotFound)
}

func TestMemoryStorage_PoliciesSorted(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.SavePolicy(ctx, models.NewPolicy(name, 10, 60000, "caller", "")))
	}

	policies, err := s.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, "alpha", policies[0].Name)
	assert.Equal(t, "mid", policies[1].Name)
	assert.Equal(t, "zeta", policies[2].Name)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)

	require.NoError(t, s.SavePolicy(ctx, models.NewPolicy("p", 10, 60000, "caller", "")))

	got, err := s.GetPolicy(ctx, "p")
	require.NoError(t, err)
	got.Capacity = 999

	again, err := s.GetPolicy(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 10, again.Capacity, "mutating a returned record must not affect the store")
}

func TestMemoryStorage_Ping(t *testing.T) {
	s, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}
