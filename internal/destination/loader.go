package destination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/magiconair/properties"
	"github.com/tidwall/jsonc"

	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

var errMissingName = errors.New("destination name is required")

// descriptor is the JSON shape of one destination.
type descriptor struct {
	Name        string `json:"Name"`
	URL         string `json:"URL"`
	User        string `json:"User"`
	Password    string `json:"Password"`
	WebIDEUsage string `json:"WebIDEUsage"`
	PreferLocal bool   `json:"preferLocal"`
}

type descriptorFile struct {
	Destinations []descriptor `json:"destinations"`
}

// Loader reads destination descriptors from a directory.
type Loader struct {
	secrets SecretResolver
	logger  observability.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSecretResolver enables "vault:" password references.
func WithSecretResolver(r SecretResolver) LoaderOption {
	return func(l *Loader) {
		l.secrets = r
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger observability.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDir reads every descriptor in dir. Files are read in lexical order:
// *.json files contribute their "destinations" array, *.properties and
// extensionless files are one descriptor each. Other files, hidden files
// and subdirectories are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]Seed, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("destinations", fmt.Sprintf("cannot read directory %s", dir), err)
	}

	var seeds []Seed
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		file := filepath.Join(dir, name)
		var descs []descriptor
		switch filepath.Ext(name) {
		case ".json":
			descs, err = readJSONFile(file)
		case "", ".properties":
			descs, err = readPropertiesFile(file)
		default:
			l.logger.Debug("skipping destination file", observability.String("file", file))
			continue
		}
		if err != nil {
			return nil, err
		}

		for i, d := range descs {
			seed, err := l.toSeed(ctx, d)
			if err != nil {
				return nil, util.NewConfigErrorWithCause(fmt.Sprintf("%s[%d]", name, i), err.Error(), err)
			}
			seeds = append(seeds, seed)
		}
	}

	l.logger.Debug("destinations loaded",
		observability.String("dir", dir),
		observability.Int("count", len(seeds)),
	)
	return seeds, nil
}

func (l *Loader) toSeed(ctx context.Context, d descriptor) (Seed, error) {
	if d.Name == "" {
		return Seed{}, errMissingName
	}

	if d.URL != "" {
		if err := validateURL(strings.ReplaceAll(d.URL, `\`, "")); err != nil {
			return Seed{}, fmt.Errorf("destination %s: %w", d.Name, err)
		}
	}

	password := d.Password
	if ref, ok := isSecretRef(password); ok {
		if l.secrets == nil {
			return Seed{}, fmt.Errorf("destination %s: password references a secret store but none is configured", d.Name)
		}
		resolved, err := l.secrets.ResolveSecret(ctx, ref)
		if err != nil {
			return Seed{}, fmt.Errorf("destination %s: %w", d.Name, err)
		}
		password = resolved
	}

	return Seed{
		Name:        d.Name,
		URL:         d.URL,
		User:        d.User,
		Password:    password,
		WebIDEUsage: d.WebIDEUsage,
		PreferLocal: d.PreferLocal,
	}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("URL %q must be an absolute http or https URL", raw)
	}
	return nil
}

func readJSONFile(file string) ([]descriptor, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, util.NewConfigErrorWithCause(filepath.Base(file), "cannot read file", err)
	}

	var df descriptorFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &df); err != nil {
		return nil, util.NewConfigErrorWithCause(filepath.Base(file), "malformed destinations file", err)
	}
	return df.Destinations, nil
}

func readPropertiesFile(file string) ([]descriptor, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadFile(file)
	if err != nil {
		return nil, util.NewConfigErrorWithCause(filepath.Base(file), "malformed properties file", err)
	}

	return []descriptor{{
		Name:        p.GetString("Name", ""),
		URL:         p.GetString("URL", ""),
		User:        p.GetString("User", ""),
		Password:    p.GetString("Password", ""),
		WebIDEUsage: p.GetString("WebIDEUsage", ""),
		PreferLocal: p.GetBool("preferLocal", false),
	}}, nil
}
