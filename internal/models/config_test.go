package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageTypeMemory, cfg.Storage.Type)
	assert.Equal(t, 5*time.Minute, cfg.Limits.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Limits.IdleWindow)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "gatekeeper", cfg.Observability.ServiceName)
}

func TestServerConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Server.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Server.TLSEnabled = true
	assert.Error(t, cfg.Validate(), "TLS without cert/key files must fail")

	cfg.Server.TLSCertFile = "/etc/gatekeeper/tls.crt"
	cfg.Server.TLSKeyFile = "/etc/gatekeeper/tls.key"
	assert.NoError(t, cfg.Validate())
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory needs nothing", func(c *Config) { c.Storage.Type = StorageTypeMemory }, false},
		{"json needs path", func(c *Config) { c.Storage.Type = StorageTypeJSON }, true},
		{"json with path", func(c *Config) {
			c.Storage.Type = StorageTypeJSON
			c.Storage.Path = "/var/lib/gatekeeper/policies.json"
		}, false},
		{"sqlite needs dsn", func(c *Config) { c.Storage.Type = StorageTypeSQLite }, true},
		{"sqlite with dsn", func(c *Config) {
			c.Storage.Type = StorageTypeSQLite
			c.Storage.Database.DSN = "./gatekeeper.db"
		}, false},
		{"postgres needs dsn", func(c *Config) { c.Storage.Type = StorageTypePostgres }, true},
		{"unknown type", func(c *Config) { c.Storage.Type = "etcd" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLimitsConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Limits.SweepInterval = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Limits.IdleWindow = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Limits.Policies = map[string]PolicyConfig{
		"bad": {Max: 0, WindowMs: 60000, KeyStrategy: "caller"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Limits.Policies = map[string]PolicyConfig{
		"good": {Max: 10, WindowMs: 60000, KeyStrategy: "caller"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestPolicyConfig_Window(t *testing.T) {
	pc := PolicyConfig{Max: 10, WindowMs: 60000}
	assert.Equal(t, time.Minute, pc.Window())
}

func TestLoggingConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Logging.Output = "file"
	assert.Error(t, cfg.Validate(), "file output without a path must fail")

	cfg.Logging.FilePath = "/var/log/gatekeeper.log"
	assert.NoError(t, cfg.Validate())
}

func TestMetricsConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metrics.Port = 0
	assert.Error(t, cfg.Validate())

	// Disabled metrics skip validation entirely
	cfg.Metrics.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Observability.ServiceName = ""
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Tracing.Exporter = "jaeger"
	assert.Error(t, cfg.Validate())

	cfg.Observability.Tracing.Exporter = "otlp"
	assert.Error(t, cfg.Validate(), "otlp without endpoint must fail")

	cfg.Observability.Tracing.OTLPEndpoint = "localhost:4317"
	assert.NoError(t, cfg.Validate())

	cfg.Observability.Tracing.SampleRate = 1.5
	assert.Error(t, cfg.Validate())
}
