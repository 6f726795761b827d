// Package api contains the HTTP handlers and routing for the gatekeeper
// service: the decision endpoint, policy administration, bucket statistics,
// and health checks.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/version"

	"github.com/gorilla/mux"
)

// Handlers contains HTTP handlers for the gatekeeper API
type Handlers struct {
	registry  *ratelimit.Registry
	admitter  ratelimit.Admitter
	buckets   *ratelimit.Store
	storage   storage.Storage
	builtin   map[string]bool
	startTime time.Time
}

// NewHandlers creates a new handlers instance. The registry is the runtime
// policy set, the admitter performs checks, the bucket store backs the stats
// endpoint, and the storage persists operator-defined policies.
func NewHandlers(registry *ratelimit.Registry, admitter ratelimit.Admitter, buckets *ratelimit.Store, store storage.Storage) *Handlers {
	builtin := make(map[string]bool)
	for _, p := range ratelimit.DefaultPolicies() {
		builtin[p.Name] = true
	}

	return &Handlers{
		registry:  registry,
		admitter:  admitter,
		buckets:   buckets,
		storage:   store,
		builtin:   builtin,
		startTime: time.Now(),
	}
}

// Decide handles admission decision requests on behalf of other services.
// POST /api/v1/decisions
func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	policy, ok := h.registry.Get(req.Policy)
	if !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("Policy %q not found", req.Policy))
		return
	}

	d := ratelimit.Descriptor{
		Origin:   req.Descriptor.Origin,
		CallerID: req.Descriptor.CallerID,
		TenantID: req.Descriptor.TenantID,
	}

	dec := h.admitter.Admit(r.Context(), d, policy)

	response := &models.DecisionResponse{
		Admitted:          dec.Admitted,
		Policy:            policy.Name,
		Limit:             dec.Limit,
		Remaining:         dec.Remaining,
		ResetAt:           dec.ResetAt.UTC(),
		RetryAfterSeconds: dec.RetryAfterSeconds(),
		Message:           dec.Message,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListPolicies handles policy list requests
// GET /api/v1/policies
func (h *Handlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()

	policies := make([]models.PolicyInfo, 0, len(names))
	for _, name := range names {
		p, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		policies = append(policies, h.policyInfo(p))
	}

	response := &models.ListPoliciesResponse{
		Policies:   policies,
		TotalCount: len(policies),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetPolicy handles single policy read requests
// GET /api/v1/policies/{name}
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, ok := h.registry.Get(name)
	if !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("Policy %q not found", name))
		return
	}

	info := h.policyInfo(p)
	h.writeJSONResponse(w, http.StatusOK, &info)
}

// CreatePolicy handles policy creation requests. The new policy takes effect
// immediately and is persisted so it survives restarts.
// POST /api/v1/policies
func (h *Handlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if _, exists := h.registry.Get(req.Name); exists {
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict,
			fmt.Sprintf("Policy %q already exists", req.Name))
		return
	}

	policy, err := ratelimit.NewPolicy(req.Name, req.Max,
		time.Duration(req.WindowMs)*time.Millisecond, req.KeyStrategy, req.Message)
	if err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	record := req.ToPolicy()
	if err := h.storage.SavePolicy(r.Context(), record); err != nil {
		slog.ErrorContext(r.Context(), "Failed to persist policy", "policy", req.Name, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to save policy")
		return
	}

	h.registry.Put(policy)

	slog.InfoContext(r.Context(), "Policy created",
		"policy", policy.Name,
		"capacity", policy.Capacity,
		"window", policy.Window,
		"key_strategy", policy.KeyStrategy)

	response := &models.CreatePolicyResponse{
		ID:        record.ID,
		Name:      record.Name,
		Message:   "Policy created successfully",
		CreatedAt: record.CreatedAt,
	}

	h.writeJSONResponse(w, http.StatusCreated, response)
}

// UpdatePolicy handles policy replacement requests. Existing buckets keep the
// parameters they were created with until the sweep evicts them; new buckets
// use the updated policy.
// PUT /api/v1/policies/{name}
func (h *Handlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req models.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	if err := req.Validate(); err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	if _, ok := h.registry.Get(name); !ok {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("Policy %q not found", name))
		return
	}

	policy, err := ratelimit.NewPolicy(name, req.Max,
		time.Duration(req.WindowMs)*time.Millisecond, req.KeyStrategy, req.Message)
	if err != nil {
		h.writeErrorResponse(w, http.StatusUnprocessableEntity, models.ErrorCodeValidation, err.Error())
		return
	}

	record, err := h.storage.GetPolicy(r.Context(), name)
	if err != nil {
		if !errors.Is(err, storage.ErrPolicyNotFound) {
			slog.ErrorContext(r.Context(), "Failed to load policy", "policy", name, "error", err)
			h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load policy")
			return
		}
		// Built-in or config-defined policy being overridden for the first
		// time; persist a fresh record under the same name.
		record = models.NewPolicy(name, req.Max, req.WindowMs, req.KeyStrategy, req.Message)
	} else {
		record.Capacity = req.Max
		record.WindowMs = req.WindowMs
		record.KeyStrategy = req.KeyStrategy
		record.Message = req.Message
		record.UpdatedAt = time.Now().UTC()
	}

	if err := h.storage.SavePolicy(r.Context(), record); err != nil {
		slog.ErrorContext(r.Context(), "Failed to persist policy", "policy", name, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to save policy")
		return
	}

	h.registry.Put(policy)

	slog.InfoContext(r.Context(), "Policy updated",
		"policy", name,
		"capacity", policy.Capacity,
		"window", policy.Window,
		"key_strategy", policy.KeyStrategy)

	response := &models.UpdatePolicyResponse{
		Name:      name,
		Message:   "Policy updated successfully",
		UpdatedAt: record.UpdatedAt,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// DeletePolicy handles policy deletion requests. Built-in policies guard the
// service's own routes and cannot be deleted, only updated.
// DELETE /api/v1/policies/{name}
func (h *Handlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if h.builtin[name] {
		h.writeErrorResponse(w, http.StatusConflict, models.ErrorCodeConflict,
			fmt.Sprintf("Built-in policy %q cannot be deleted", name))
		return
	}

	if !h.registry.Remove(name) {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound,
			fmt.Sprintf("Policy %q not found", name))
		return
	}

	// Config-defined policies have no persisted record; that is not an error.
	if err := h.storage.DeletePolicy(r.Context(), name); err != nil && !errors.Is(err, storage.ErrPolicyNotFound) {
		slog.ErrorContext(r.Context(), "Failed to delete persisted policy", "policy", name, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to delete policy")
		return
	}

	slog.InfoContext(r.Context(), "Policy deleted", "policy", name)

	response := &models.DeletePolicyResponse{
		Name:    name,
		Message: "Policy deleted successfully",
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// BucketStats handles bucket statistics requests for operators. Bucket keys
// are prefixed with their policy name, which is how the per-class breakdown
// is derived.
// GET /api/v1/buckets
func (h *Handlers) BucketStats(w http.ResponseWriter, r *http.Request) {
	keys := h.buckets.Keys()

	byClass := make(map[string]int)
	for _, key := range keys {
		class, _, found := strings.Cut(key, "|")
		if !found {
			class = "unknown"
		}
		byClass[class]++
	}

	response := &models.BucketStatsResponse{
		TotalBuckets:   len(keys),
		BucketsByClass: byClass,
		Timestamp:      time.Now().UTC(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()

	if err := h.storage.Ping(r.Context()); err != nil {
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
	} else {
		response.AddComponent("storage", models.StatusHealthy, "Policy storage is operational")
	}

	response.AddComponent("buckets", models.StatusHealthy,
		fmt.Sprintf("%d live buckets", h.buckets.Len()))

	h.writeJSONResponse(w, http.StatusOK, response)
}

func (h *Handlers) policyInfo(p *ratelimit.Policy) models.PolicyInfo {
	return models.PolicyInfo{
		Name:        p.Name,
		Capacity:    p.Capacity,
		WindowMs:    p.Window.Milliseconds(),
		KeyStrategy: p.KeyStrategy,
		Message:     p.Message,
		BuiltIn:     h.builtin[p.Name],
	}
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written, so just log the failure.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	h.writeJSONResponse(w, statusCode, errorResp)
}
