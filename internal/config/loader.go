package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/devproxy/internal/util"
)

// Environment variables consulted by ApplyEnv when the corresponding value
// was not configured.
const (
	EnvConfig           = "DEVPROXY_CONFIG"
	EnvLogLevel         = "DEVPROXY_LOG_LEVEL"
	EnvLogFormat        = "DEVPROXY_LOG_FORMAT"
	EnvDestinationsPath = "DEVPROXY_DESTINATIONS_PATH"
	EnvResourcesPath    = "DEVPROXY_RESOURCES_PATH"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadConfig loads configuration from a file path. Relative paths inside the
// file are resolved against the file's directory; defaults applied later,
// like neo-app.json, stay relative to the working directory.
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // operator supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := parseConfig(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(absPath))
	return cfg, nil
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parseConfig(data, os.LookupEnv)
}

func parseConfig(data []byte, lookup LookupFunc) (*Config, error) {
	content := substituteEnvVars(string(data), lookup)

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, util.NewConfigErrorWithCause("", "failed to parse YAML", err)
	}
	return &cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default}. "$$" is a literal
// dollar sign.
func substituteEnvVars(content string, lookup LookupFunc) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		if value, ok := lookup(submatches[1]); ok {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// ApplyEnv fills values that were not configured from the DEVPROXY_*
// environment variables.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	fill(&cfg.Logging.Level, EnvLogLevel)
	fill(&cfg.Logging.Format, EnvLogFormat)
	fill(&cfg.Destinations.Path, EnvDestinationsPath)
	fill(&cfg.Resources.Path, EnvResourcesPath)
}

// resolvePaths makes relative file locations absolute against base.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{
		&c.Routes.Manifest,
		&c.Destinations.Path,
		&c.Resources.Path,
		&c.Webapp.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// WatchPaths returns the files and directories whose change requires a
// rebuild of the routing state.
func (c *Config) WatchPaths() []string {
	paths := make([]string, 0, 2)
	if c.Routes.Manifest != "" {
		paths = append(paths, c.Routes.Manifest)
	}
	if c.Destinations.Path != "" {
		paths = append(paths, c.Destinations.Path)
	}
	return paths
}
