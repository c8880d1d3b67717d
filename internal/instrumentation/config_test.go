package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ServiceName:       "apstra-mcp",
		ServiceVersion:    "test",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "empty exporters accepted",
			mutate: func(c *Config) { c.MetricsExporter = ""; c.TracingExporter = "" },
		},
		{
			name: "otlp with endpoint",
			mutate: func(c *Config) {
				c.MetricsExporter = ExporterOTLP
				c.TracingExporter = ExporterOTLP
				c.OTLPEndpoint = "localhost:4318"
			},
		},
		{
			name:        "unknown metrics exporter",
			mutate:      func(c *Config) { c.MetricsExporter = "statsd" },
			errContains: "invalid metrics exporter",
		},
		{
			name:        "unknown tracing exporter",
			mutate:      func(c *Config) { c.TracingExporter = "jaeger" },
			errContains: "invalid tracing exporter",
		},
		{
			name:        "otlp metrics without endpoint",
			mutate:      func(c *Config) { c.MetricsExporter = ExporterOTLP },
			errContains: "OTLP endpoint is required",
		},
		{
			name:        "otlp tracing without endpoint",
			mutate:      func(c *Config) { c.TracingExporter = ExporterOTLP },
			errContains: "OTLP endpoint is required",
		},
		{
			name:        "sampling rate below range",
			mutate:      func(c *Config) { c.TraceSamplingRate = -0.1 },
			errContains: "sampling rate",
		},
		{
			name:        "sampling rate above range",
			mutate:      func(c *Config) { c.TraceSamplingRate = 1.5 },
			errContains: "sampling rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "apstra-mcp", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ExporterPrometheus, cfg.MetricsExporter)
	assert.Equal(t, ExporterNone, cfg.TracingExporter)
	assert.Equal(t, 0.1, cfg.TraceSamplingRate)
	assert.True(t, cfg.AuditEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "fabric-mcp")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", ExporterStdout)
	t.Setenv("TRACING_EXPORTER", ExporterStdout)
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("AUDIT_LOGGING_ENABLED", "false")

	cfg := DefaultConfig()
	assert.Equal(t, "fabric-mcp", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ExporterStdout, cfg.MetricsExporter)
	assert.Equal(t, ExporterStdout, cfg.TracingExporter)
	assert.Equal(t, 0.5, cfg.TraceSamplingRate)
	assert.False(t, cfg.AuditEnabled)
}

func TestDefaultConfigIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "maybe")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "lots")

	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0.1, cfg.TraceSamplingRate)
}
