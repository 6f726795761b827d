package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration file to the given path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *exampleConfig)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize policy storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	// Build the policy registry: built-in defaults, then configuration
	// overrides, then persisted operator-defined policies. Any invalid policy
	// is fatal here rather than discovered per request.
	registry, err := buildRegistry(context.Background(), cfg, activeStorage)
	if err != nil {
		slog.Error("Failed to build policy registry", "error", err)
		os.Exit(1)
	}

	// Initialize the bucket store and its background sweep
	buckets := ratelimit.NewStore(
		ratelimit.WithSweepInterval(cfg.Limits.SweepInterval),
		ratelimit.WithIdleWindow(cfg.Limits.IdleWindow),
	)
	defer buckets.Shutdown()

	// Initialize the admission controller
	var admitter ratelimit.Admitter = ratelimit.NewController(buckets)
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedAdmitter(admitter)
		if err != nil {
			slog.Error("Failed to create instrumented admitter", "error", err)
			os.Exit(1)
		}
		admitter = instrumented
	}

	// Initialize HTTP handlers
	handlers := api.NewHandlers(registry, admitter, buckets, activeStorage)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, registry, admitter, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "policies", registry.Names())

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// buildRegistry assembles the runtime policy set. Built-in defaults come
// first, configuration entries override or extend them, and persisted
// operator-defined records are applied last so admin API changes survive
// restarts.
func buildRegistry(ctx context.Context, cfg *models.Config, store storage.Storage) (*ratelimit.Registry, error) {
	registry, err := ratelimit.NewRegistry(ratelimit.DefaultPolicies()...)
	if err != nil {
		return nil, err
	}

	for name, pc := range cfg.Limits.Policies {
		policy, err := ratelimit.NewPolicy(name, pc.Max, pc.Window(), pc.KeyStrategy, pc.Message)
		if err != nil {
			return nil, fmt.Errorf("configured policy %q: %w", name, err)
		}
		registry.Put(policy)
	}

	records, err := store.Policies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persisted policies: %w", err)
	}
	for _, record := range records {
		policy, err := ratelimit.NewPolicy(record.Name, record.Capacity, record.Window(),
			record.KeyStrategy, record.Message)
		if err != nil {
			return nil, fmt.Errorf("persisted policy %q: %w", record.Name, err)
		}
		registry.Put(policy)
	}

	return registry, nil
}
