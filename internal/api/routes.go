package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API. Every route is guarded
// by the admission policy for its traffic class: liveness checks by "health",
// decision and policy reads by "general", and policy mutations plus bucket
// statistics by "admin".
func SetupRoutes(handlers *Handlers, registry *ratelimit.Registry, admitter ratelimit.Admitter, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	router.Use(identityMiddleware)

	healthGuard := policyGuard(admitter, registry, ratelimit.PolicyHealth)
	generalGuard := policyGuard(admitter, registry, ratelimit.PolicyGeneral)
	adminGuard := policyGuard(admitter, registry, ratelimit.PolicyAdmin)

	router.Handle("/health", healthGuard(http.HandlerFunc(handlers.HealthCheck))).Methods("GET")
	router.Handle("/api/v1/health", healthGuard(http.HandlerFunc(handlers.HealthCheck))).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	publicAPI := api.PathPrefix("").Subrouter()
	publicAPI.Use(generalGuard)
	publicAPI.HandleFunc("/decisions", handlers.Decide).Methods("POST")
	publicAPI.HandleFunc("/policies", handlers.ListPolicies).Methods("GET")
	publicAPI.HandleFunc("/policies/{name}", handlers.GetPolicy).Methods("GET")

	adminAPI := api.PathPrefix("").Subrouter()
	adminAPI.Use(adminGuard)
	adminAPI.HandleFunc("/policies", handlers.CreatePolicy).Methods("POST")
	adminAPI.HandleFunc("/policies/{name}", handlers.UpdatePolicy).Methods("PUT")
	adminAPI.HandleFunc("/policies/{name}", handlers.DeletePolicy).Methods("DELETE")
	adminAPI.HandleFunc("/buckets", handlers.BucketStats).Methods("GET")

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}

// policyGuard resolves the named policy from the registry on every request so
// operator updates take effect without a restart, then applies the admission
// middleware. An unregistered name leaves the route unguarded.
func policyGuard(admitter ratelimit.Admitter, registry *ratelimit.Registry, name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := registry.Get(name)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ratelimit.Middleware(admitter, policy)(next).ServeHTTP(w, r)
		})
	}
}

// identityMiddleware propagates caller and tenant identity from trusted
// request headers into the request context for key derivation. Authentication
// itself is handled upstream; gatekeeper only consumes the identities.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if key := r.Header.Get("X-API-Key"); key != "" {
			ctx = ratelimit.WithCaller(ctx, key)
		}
		if tenant := r.Header.Get("X-Tenant-ID"); tenant != "" {
			ctx = ratelimit.WithTenant(ctx, tenant)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", models.ErrorCodeInternalError)
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
