package models

import (
	"errors"
	"fmt"
)

// DecisionRequest asks the decision API to evaluate a request descriptor
// against a named policy on behalf of another service.
type DecisionRequest struct {
	Policy     string            `json:"policy"`
	Descriptor DescriptorPayload `json:"descriptor"`
}

// DescriptorPayload is the wire form of a request descriptor. All fields are
// optional; key strategies fall back per their documented ordering.
type DescriptorPayload struct {
	Origin   string `json:"origin,omitempty"`
	CallerID string `json:"caller_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

func (r *DecisionRequest) Validate() error {
	if r.Policy == "" {
		return errors.New("policy is required")
	}
	return nil
}

// CreatePolicyRequest carries a new operator-defined policy.
type CreatePolicyRequest struct {
	Name        string `json:"name"`
	Max         int    `json:"max"`
	WindowMs    int64  `json:"window_ms"`
	KeyStrategy string `json:"key_strategy"`
	Message     string `json:"message"`
}

func (r *CreatePolicyRequest) Validate() error {
	p := Policy{
		Name:        r.Name,
		Capacity:    r.Max,
		WindowMs:    r.WindowMs,
		KeyStrategy: r.KeyStrategy,
	}
	return p.Validate()
}

// ToPolicy converts the request into a fresh policy record.
func (r *CreatePolicyRequest) ToPolicy() *Policy {
	return NewPolicy(r.Name, r.Max, r.WindowMs, r.KeyStrategy, r.Message)
}

// UpdatePolicyRequest replaces an existing policy's parameters. The name
// comes from the URL, not the body.
type UpdatePolicyRequest struct {
	Max         int    `json:"max"`
	WindowMs    int64  `json:"window_ms"`
	KeyStrategy string `json:"key_strategy"`
	Message     string `json:"message"`
}

func (r *UpdatePolicyRequest) Validate() error {
	if r.Max <= 0 {
		return fmt.Errorf("max must be positive, got %d", r.Max)
	}
	if r.WindowMs <= 0 {
		return fmt.Errorf("window_ms must be positive, got %d", r.WindowMs)
	}
	if !validKeyStrategies[r.KeyStrategy] {
		return fmt.Errorf("unknown key strategy: %q", r.KeyStrategy)
	}
	return nil
}
