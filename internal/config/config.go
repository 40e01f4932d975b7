package config

import (
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultAddress          = ":8080"
	DefaultManifest         = "neo-app.json"
	DefaultFrameworkService = "sapui5"
	DefaultMetricsAddress   = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "devproxy"
	DefaultServiceName      = "devproxy"
	DefaultVaultMount       = "secret"
	DefaultReadHeader       = 10 * time.Second
	DefaultIdleTimeout      = 120 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultDebounce         = 250 * time.Millisecond
	DefaultSamplingRate     = 1.0
)

// Config is the process configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" json:"server"`
	Routes       RoutesConfig       `yaml:"routes" json:"routes"`
	Destinations DestinationsConfig `yaml:"destinations" json:"destinations"`
	Resources    ResourcesConfig    `yaml:"resources" json:"resources"`
	Webapp       WebappConfig       `yaml:"webapp" json:"webapp"`
	Upstream     UpstreamConfig     `yaml:"upstream" json:"upstream"`
	CORS         CORSConfig         `yaml:"cors" json:"cors"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing" json:"tracing"`
	Watch        WatchConfig        `yaml:"watch" json:"watch"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address           string   `yaml:"address,omitempty" json:"address,omitempty"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	ReadTimeout       Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	// WriteTimeout of zero leaves long downloads and websockets unbounded.
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// RoutesConfig locates the route manifest.
type RoutesConfig struct {
	Manifest string `yaml:"manifest,omitempty" json:"manifest,omitempty"`
}

// DestinationsConfig locates destination descriptors.
type DestinationsConfig struct {
	Path  string       `yaml:"path,omitempty" json:"path,omitempty"`
	Vault *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultConfig enables vault: password references in descriptors.
type VaultConfig struct {
	Address   string   `yaml:"address,omitempty" json:"address,omitempty"`
	Token     string   `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Mount     string   `yaml:"mount,omitempty" json:"mount,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// ResourcesConfig configures the local framework mirror.
type ResourcesConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// PreferLocal nil means "take it from the framework destination".
	PreferLocal      *bool  `yaml:"preferLocal,omitempty" json:"preferLocal,omitempty"`
	FrameworkService string `yaml:"frameworkService,omitempty" json:"frameworkService,omitempty"`
}

// WebappConfig configures the handler for requests no route claims.
type WebappConfig struct {
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// UpstreamConfig tunes forwarding to destinations.
type UpstreamConfig struct {
	// StrictSSL nil means true.
	StrictSSL             *bool    `yaml:"strictSSL,omitempty" json:"strictSSL,omitempty"`
	DialTimeout           Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ResponseHeaderTimeout Duration `yaml:"responseHeaderTimeout,omitempty" json:"responseHeaderTimeout,omitempty"`
	MaxIdleConnsPerHost   int      `yaml:"maxIdleConnsPerHost,omitempty" json:"maxIdleConnsPerHost,omitempty"`
	FlushInterval         Duration `yaml:"flushInterval,omitempty" json:"flushInterval,omitempty"`
}

// CORSConfig overrides the permissive CORS defaults.
type CORSConfig struct {
	AllowOrigin  string   `yaml:"allowOrigin,omitempty" json:"allowOrigin,omitempty"`
	AllowMethods []string `yaml:"allowMethods,omitempty" json:"allowMethods,omitempty"`
	AllowHeaders []string `yaml:"allowHeaders,omitempty" json:"allowHeaders,omitempty"`
	MaxAge       int      `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// TracingConfig represents tracing configuration.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure     bool    `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// WatchConfig controls reloading on manifest and destination changes.
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Debounce Duration `yaml:"debounce,omitempty" json:"debounce,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Paths that have no sensible default
// (destinations, resources, webapp) stay empty.
func (c *Config) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = Duration(DefaultReadHeader)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Routes.Manifest == "" {
		c.Routes.Manifest = DefaultManifest
	}
	if v := c.Destinations.Vault; v != nil && v.Mount == "" {
		v.Mount = DefaultVaultMount
	}
	if c.Resources.FrameworkService == "" {
		c.Resources.FrameworkService = DefaultFrameworkService
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddress
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.Tracing.Enabled && c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = DefaultSamplingRate
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = Duration(DefaultDebounce)
	}
}

// VerifyTLS reports whether destination certificates are verified.
func (u UpstreamConfig) VerifyTLS() bool {
	return u.StrictSSL == nil || *u.StrictSSL
}
