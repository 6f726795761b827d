package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrInvalidPolicy indicates a policy was constructed with unusable
// parameters. Policy validation is fatal at registry construction, never
// discovered lazily per request.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// Policy is the immutable configuration for one traffic class: how large a
// burst to allow, over what window it regenerates, how requests are keyed,
// and what to tell a throttled caller.
type Policy struct {
	Name        string
	Capacity    int           // Maximum tokens (burst size)
	Window      time.Duration // Time for a drained bucket to fully regenerate
	KeyStrategy string        // Selector name, for reporting and persistence
	Message     string        // Human-readable deny text

	keyFunc KeyFunc
}

// NewPolicy validates and constructs a policy. The key strategy must be one
// of the registered selector names.
func NewPolicy(name string, capacity int, window time.Duration, keyStrategy, message string) (*Policy, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidPolicy)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w %q: capacity must be positive, got %d", ErrInvalidPolicy, name, capacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w %q: window must be positive, got %v", ErrInvalidPolicy, name, window)
	}

	keyFunc, err := KeyFuncByName(keyStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPolicy, name, err)
	}

	if message == "" {
		message = "Rate limit exceeded"
	}

	return &Policy{
		Name:        name,
		Capacity:    capacity,
		Window:      window,
		KeyStrategy: keyStrategy,
		Message:     message,
		keyFunc:     keyFunc,
	}, nil
}

// RefillRate returns the continuous regeneration rate in tokens per second.
func (p *Policy) RefillRate() float64 {
	return float64(p.Capacity) / p.Window.Seconds()
}

// bucketKey derives the accounting key for a request under this policy. The
// derived key is scoped by policy name so two policies never share a bucket,
// even when their key strategies produce identical values.
func (p *Policy) bucketKey(d Descriptor) string {
	return p.Name + "|" + p.keyFunc(d)
}

// Built-in policy names for the service's traffic classes.
const (
	PolicyGeneral = "general"
	PolicyWrite   = "write"
	PolicyAdmin   = "admin"
	PolicyHealth  = "health"
)

// DefaultPolicies returns the built-in policy set: general request traffic,
// expensive write traffic, administrative traffic, and liveness checks.
func DefaultPolicies() []*Policy {
	return []*Policy{
		mustPolicy(PolicyGeneral, 100, time.Minute, StrategyCaller,
			"Too many requests. Please slow down and try again shortly."),
		mustPolicy(PolicyWrite, 20, time.Minute, StrategyTenant,
			"Write rate limit exceeded. Please retry after the indicated delay."),
		mustPolicy(PolicyAdmin, 30, time.Minute, StrategyCaller,
			"Administrative rate limit exceeded."),
		mustPolicy(PolicyHealth, 120, time.Minute, StrategyOrigin,
			"Health check rate limit exceeded."),
	}
}

// mustPolicy panics on invalid parameters. Only for compile-time constant
// defaults, which are covered by tests.
func mustPolicy(name string, capacity int, window time.Duration, keyStrategy, message string) *Policy {
	p, err := NewPolicy(name, capacity, window, keyStrategy, message)
	if err != nil {
		panic(err)
	}
	return p
}

// Registry is a named set of policies. Reads dominate; writes only happen
// when an operator updates policies through the admin API.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewRegistry builds a registry from the given policies. Duplicate names are
// a configuration error.
func NewRegistry(policies ...*Policy) (*Registry, error) {
	r := &Registry{policies: make(map[string]*Policy, len(policies))}
	for _, p := range policies {
		if _, exists := r.policies[p.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate policy name %q", ErrInvalidPolicy, p.Name)
		}
		r.policies[p.Name] = p
	}
	return r, nil
}

// Get returns the policy with the given name.
func (r *Registry) Get(name string) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Put inserts or replaces a policy. Buckets created under the previous
// parameters keep them until the sweep evicts them; new buckets use the
// replacement.
func (r *Registry) Put(p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name] = p
}

// Remove deletes a policy by name. Returns false when no such policy exists.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[name]; !ok {
		return false
	}
	delete(r.policies, name)
	return true
}

// Names returns the registered policy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
