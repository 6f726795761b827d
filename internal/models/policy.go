package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key strategy selector names accepted in policy records. These mirror the
// strategies implemented by the ratelimit package.
var validKeyStrategies = map[string]bool{
	"origin": true,
	"tenant": true,
	"caller": true,
}

// Policy is a persisted rate limit policy record. Built-in policies live in
// the runtime registry only; records exist for operator-defined policies
// that must survive restarts.
type Policy struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Capacity    int       `json:"capacity" yaml:"capacity"`
	WindowMs    int64     `json:"window_ms" yaml:"window_ms"`
	KeyStrategy string    `json:"key_strategy" yaml:"key_strategy"`
	Message     string    `json:"message" yaml:"message"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewPolicy constructs a policy record with a fresh ID and timestamps.
func NewPolicy(name string, capacity int, windowMs int64, keyStrategy, message string) *Policy {
	now := time.Now().UTC()
	return &Policy{
		ID:          uuid.New().String(),
		Name:        name,
		Capacity:    capacity,
		WindowMs:    windowMs,
		KeyStrategy: keyStrategy,
		Message:     message,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the record's invariants. Invalid records are rejected at
// the API boundary and on load, never evaluated at admission time.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return errors.New("policy name cannot be empty")
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("policy capacity must be positive, got %d", p.Capacity)
	}
	if p.WindowMs <= 0 {
		return fmt.Errorf("policy window_ms must be positive, got %d", p.WindowMs)
	}
	if !validKeyStrategies[p.KeyStrategy] {
		return fmt.Errorf("unknown key strategy: %q", p.KeyStrategy)
	}
	return nil
}

// Window returns the policy window as a duration.
func (p *Policy) Window() time.Duration {
	return time.Duration(p.WindowMs) * time.Millisecond
}
