package storage

import (
	"context"
	"sort"
	"sync"

	"gatekeeper/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. Policy records are lost on restart, which is acceptable for
// single-instance deployments that define all policies in configuration.
type MemoryStorage struct {
	mu       sync.RWMutex
	policies map[string]*models.Policy // keyed by name
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		policies: make(map[string]*models.Policy),
	}, nil
}

// Policies returns all persisted policy records, sorted by name.
func (m *MemoryStorage) Policies(ctx context.Context) ([]*models.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policies := make([]*models.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		// Return a copy to prevent external modification
		policyCopy := *p
		policies = append(policies, &policyCopy)
	}

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Name < policies[j].Name
	})

	return policies, nil
}

// GetPolicy retrieves a policy record by name
func (m *MemoryStorage) GetPolicy(ctx context.Context, name string) (*models.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.policies[name]
	if !exists {
		return nil, ErrPolicyNotFound
	}

	policyCopy := *p
	return &policyCopy, nil
}

// SavePolicy stores or updates a policy record
func (m *MemoryStorage) SavePolicy(ctx context.Context, policy *models.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	policyCopy := *policy
	m.policies[policy.Name] = &policyCopy

	return nil
}

// DeletePolicy removes a policy record by name
func (m *MemoryStorage) DeletePolicy(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.policies[name]; !exists {
		return ErrPolicyNotFound
	}

	delete(m.policies, name)
	return nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
