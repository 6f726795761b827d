package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJSONStorage(t *testing.T) (*JSONStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.json")
	s, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)
	return s, path
}

func TestNewJSONStorage_RequiresPath(t *testing.T) {
	_, err := NewJSONStorage(Config{Type: "json"})
	assert.Error(t, err)
}

func TestNewJSONStorage_CreatesFile(t *testing.T) {
	_, path := newTestJSONStorage(t)

	_, err := os.Stat(path)
	assert.NoError(t, err, "policy file should be created on first open")
}

func TestJSONStorage_CRUD(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestJSONStorage(t)

	p := models.NewPolicy("search", 30, 60000, "tenant", "Search limit exceeded")
	require.NoError(t, s.SavePolicy(ctx, p))

	got, err := s.GetPolicy(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, s.DeletePolicy(ctx, "search"))
	_, err = s.GetPolicy(ctx, "search")
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestJSONStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestJSONStorage(t)

	require.NoError(t, s.SavePolicy(ctx, models.NewPolicy("search", 30, 60000, "tenant", "m")))
	require.NoError(t, s.SavePolicy(ctx, models.NewPolicy("export", 5, 3600000, "caller", "m")))
	require.NoError(t, s.Close())

	reopened, err := NewJSONStorage(Config{Type: "json", Path: path})
	require.NoError(t, err)

	policies, err := reopened.Policies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "export", policies[0].Name)
	assert.Equal(t, "search", policies[1].Name)
}

func TestJSONStorage_RejectsCorruptRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	data := `{"policies":[{"id":"x","name":"bad","capacity":0,"window_ms":60000,"key_strategy":"caller"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	_, err := NewJSONStorage(Config{Type: "json", Path: path})
	assert.Error(t, err, "a record that fails validation must be rejected on load")
}

func TestJSONStorage_Ping(t *testing.T) {
	s, path := newTestJSONStorage(t)

	assert.NoError(t, s.Ping(context.Background()))

	require.NoError(t, os.Remove(path))
	assert.Error(t, s.Ping(context.Background()))
}
