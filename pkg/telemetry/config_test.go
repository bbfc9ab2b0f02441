package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnv(t *testing.T) {
	for _, k := range []string{
		"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL",
		"OTEL_EXPORTER_OTLP_HEADERS", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_TRACES_SAMPLER", "OTEL_TRACES_SAMPLER_ARG", "OTEL_RESOURCE_ATTRIBUTES",
	} {
		t.Setenv(k, "")
	}

	t.Run("defaults", func(t *testing.T) {
		cfg := LoadFromEnv()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "graphpack", cfg.ServiceName)
		assert.Equal(t, "unknown", cfg.ServiceVersion)
		assert.Equal(t, "grpc", cfg.Protocol)
		assert.Empty(t, cfg.Headers)
	})

	t.Run("custom values", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "TRUE")
		t.Setenv("OTEL_SERVICE_NAME", "catalog")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer abc,X-Tenant=t1")
		t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=prod")

		cfg := LoadFromEnv()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "catalog", cfg.ServiceName)
		assert.Equal(t, "http/protobuf", cfg.Protocol)
		assert.Equal(t, map[string]string{"Authorization": "Bearer abc", "X-Tenant": "t1"}, cfg.Headers)
		assert.Equal(t, "prod", cfg.ResourceAttrs["deployment.environment"])
	})
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "key=value", map[string]string{"key": "value"}},
		{"spaces", " k1 = v1 , k2 = v2 ", map[string]string{"k1": "v1", "k2": "v2"}},
		{"value with equals", "Authorization=Bearer token=abc", map[string]string{"Authorization": "Bearer token=abc"}},
		{"empty value", "key=", map[string]string{"key": ""}},
		{"mixed", "valid=value,invalid,=nokey,another=test", map[string]string{"valid": "value", "another": "test"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseKeyValuePairs(tt.input))
		})
	}
}
