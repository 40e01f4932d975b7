package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, DefaultManifest, cfg.Routes.Manifest)
	assert.Equal(t, DefaultFrameworkService, cfg.Resources.FrameworkService)
	assert.Nil(t, cfg.Resources.PreferLocal)
	assert.Empty(t, cfg.Destinations.Path)
	assert.Nil(t, cfg.Destinations.Vault)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
	assert.Zero(t, cfg.Tracing.SamplingRate)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce.Duration())
	assert.True(t, cfg.Upstream.VerifyTLS())
	assert.NoError(t, ValidateConfig(cfg))
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Server:       ServerConfig{Address: "127.0.0.1:3000"},
		Destinations: DestinationsConfig{Vault: &VaultConfig{Address: "http://vault:8200", Mount: "kv"}},
		Tracing:      TracingConfig{Enabled: true, SamplingRate: 0.25},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, "127.0.0.1:3000", cfg.Server.Address)
	assert.Equal(t, "kv", cfg.Destinations.Vault.Mount)
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 0)
}

func TestApplyDefaults_VaultMountAndSampling(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Destinations: DestinationsConfig{Vault: &VaultConfig{Address: "http://vault:8200"}},
		Tracing:      TracingConfig{Enabled: true},
	}

	cfg.ApplyDefaults()

	assert.Equal(t, DefaultVaultMount, cfg.Destinations.Vault.Mount)
	assert.InDelta(t, DefaultSamplingRate, cfg.Tracing.SamplingRate, 0)
}

func TestUpstreamConfig_VerifyTLS(t *testing.T) {
	t.Parallel()

	yes, no := true, false

	assert.True(t, UpstreamConfig{}.VerifyTLS())
	assert.True(t, UpstreamConfig{StrictSSL: &yes}.VerifyTLS())
	assert.False(t, UpstreamConfig{StrictSSL: &no}.VerifyTLS())
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds", input: `timeout: "30s"`, expected: 30 * time.Second},
		{name: "compound", input: `timeout: 1m30s`, expected: 90 * time.Second},
		{name: "empty", input: `timeout: ""`, expected: 0},
		{name: "invalid", input: `timeout: soon`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out struct {
				Timeout Duration `yaml:"timeout"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Timeout.Duration())
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var out struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"250ms","b":null}`), &out))
	assert.Equal(t, 250*time.Millisecond, out.A.Duration())
	assert.Zero(t, out.B)

	data, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(data))

	y, err := Duration(time.Minute).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", y)
}
