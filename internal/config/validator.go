package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

// ValidateConfig checks cfg and returns every problem found joined into one
// error. Each problem is a *util.ConfigError.
func ValidateConfig(cfg *Config) error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, util.NewConfigError(field, fmt.Sprintf(format, args...)))
	}

	if err := validateAddress(cfg.Server.Address); err != nil {
		add("server.address", "%v", err)
	}
	for _, d := range []struct {
		field string
		value Duration
	}{
		{"server.readHeaderTimeout", cfg.Server.ReadHeaderTimeout},
		{"server.readTimeout", cfg.Server.ReadTimeout},
		{"server.writeTimeout", cfg.Server.WriteTimeout},
		{"server.idleTimeout", cfg.Server.IdleTimeout},
		{"server.shutdownTimeout", cfg.Server.ShutdownTimeout},
		{"upstream.dialTimeout", cfg.Upstream.DialTimeout},
		{"upstream.responseHeaderTimeout", cfg.Upstream.ResponseHeaderTimeout},
		{"upstream.flushInterval", cfg.Upstream.FlushInterval},
		{"watch.debounce", cfg.Watch.Debounce},
	} {
		if d.value < 0 {
			add(d.field, "must not be negative")
		}
	}
	if cfg.Upstream.MaxIdleConnsPerHost < 0 {
		add("upstream.maxIdleConnsPerHost", "must not be negative")
	}

	if cfg.Routes.Manifest == "" {
		add("routes.manifest", "is required")
	}
	if v := cfg.Destinations.Vault; v != nil && v.Address == "" {
		add("destinations.vault.address", "is required when vault is configured")
	}

	if _, err := observability.ParseLevel(cfg.Logging.Level); err != nil {
		add("logging.level", "unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "", "json", "console":
	default:
		add("logging.format", "must be json or console, got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if err := validateAddress(cfg.Metrics.Address); err != nil {
			add("metrics.address", "%v", err)
		}
		if cfg.Metrics.Address == cfg.Server.Address {
			add("metrics.address", "must differ from server.address")
		}
	}
	if cfg.Tracing.Enabled {
		if cfg.Tracing.OTLPEndpoint == "" {
			add("tracing.otlpEndpoint", "is required when tracing is enabled")
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			add("tracing.samplingRate", "must be between 0 and 1")
		}
	}
	if cfg.CORS.MaxAge < 0 {
		add("cors.maxAge", "must not be negative")
	}

	return errors.Join(errs...)
}

func validateAddress(addr string) error {
	if addr == "" {
		return errors.New("is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q", addr)
	}
	return nil
}
