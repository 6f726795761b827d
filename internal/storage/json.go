package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gatekeeper/internal/models"
)

// JSONStorage implements the Storage interface using a JSON file for
// persistence. Records are held in memory and written through on every
// mutation; writes go to a temp file and are renamed into place so a crash
// mid-write cannot corrupt the store.
type JSONStorage struct {
	filePath string
	mu       sync.RWMutex
	policies map[string]*models.Policy
}

// jsonData represents the structure of data stored in JSON format
type jsonData struct {
	Policies    []*models.Policy `json:"policies"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	s := &JSONStorage{
		filePath: config.Path,
		policies: make(map[string]*models.Policy),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load policy file: %w", err)
	}

	return s, nil
}

// load reads the policy file into memory, creating it when absent.
func (j *JSONStorage) load() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return j.persist()
	}

	data, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var parsed jsonData
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	for _, p := range parsed.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid policy %q in file: %w", p.Name, err)
		}
		j.policies[p.Name] = p
	}

	return nil
}

// persist writes the current policy set to disk. Callers must hold the
// write lock.
func (j *JSONStorage) persist() error {
	policies := make([]*models.Policy, 0, len(j.policies))
	for _, p := range j.policies {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(a, b int) bool {
		return policies[a].Name < policies[b].Name
	})

	data, err := json.MarshalIndent(jsonData{
		Policies:    policies,
		LastUpdated: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal policies: %w", err)
	}

	tmpPath := j.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, j.filePath); err != nil {
		return fmt.Errorf("failed to replace policy file: %w", err)
	}

	return nil
}

// Policies returns all persisted policy records, sorted by name.
func (j *JSONStorage) Policies(ctx context.Context) ([]*models.Policy, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	policies := make([]*models.Policy, 0, len(j.policies))
	for _, p := range j.policies {
		policyCopy := *p
		policies = append(policies, &policyCopy)
	}

	sort.Slice(policies, func(a, b int) bool {
		return policies[a].Name < policies[b].Name
	})

	return policies, nil
}

// GetPolicy retrieves a policy record by name
func (j *JSONStorage) GetPolicy(ctx context.Context, name string) (*models.Policy, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	p, exists := j.policies[name]
	if !exists {
		return nil, ErrPolicyNotFound
	}

	policyCopy := *p
	return &policyCopy, nil
}

// SavePolicy stores or updates a policy record and writes through to disk.
func (j *JSONStorage) SavePolicy(ctx context.Context, policy *models.Policy) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	policyCopy := *policy
	j.policies[policy.Name] = &policyCopy

	return j.persist()
}

// DeletePolicy removes a policy record by name and writes through to disk.
func (j *JSONStorage) DeletePolicy(ctx context.Context, name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.policies[name]; !exists {
		return ErrPolicyNotFound
	}

	delete(j.policies, name)
	return j.persist()
}

// Ping verifies the backing file is still accessible.
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return fmt.Errorf("policy file inaccessible: %w", err)
	}
	return nil
}

// Close is a no-op for JSON storage; all writes are flushed on mutation.
func (j *JSONStorage) Close() error {
	return nil
}
