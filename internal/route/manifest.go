package route

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/vyrodovalexey/devproxy/internal/util"
)

// DefaultManifestFile is the manifest file name looked up in the project root.
const DefaultManifestFile = "neo-app.json"

type manifestFile struct {
	Routes []manifestRoute `json:"routes"`
}

type manifestRoute struct {
	Path        string         `json:"path"`
	Description string         `json:"description,omitempty"`
	Target      manifestTarget `json:"target"`
}

type manifestTarget struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	EntryPath string `json:"entryPath,omitempty"`
}

// LoadManifest reads and parses the route manifest at path.
func LoadManifest(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.NewConfigErrorWithCause("routes", fmt.Sprintf("cannot read manifest %s", path), err)
	}
	return ParseManifest(data)
}

// ParseManifest parses a route manifest. Comments and trailing commas are
// accepted.
func ParseManifest(data []byte) (*Table, error) {
	var mf manifestFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &mf); err != nil {
		return nil, util.NewConfigErrorWithCause("routes", "malformed manifest", err)
	}

	entries := make([]Entry, 0, len(mf.Routes))
	for i, r := range mf.Routes {
		kind, err := ParseKind(r.Target.Type)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(fmt.Sprintf("routes[%d].target.type", i), err.Error(), err)
		}
		entries = append(entries, Entry{
			Prefix:    r.Path,
			Target:    Target{Kind: kind, Name: r.Target.Name},
			Version:   r.Target.Version,
			EntryPath: r.Target.EntryPath,
		})
	}

	return NewTable(entries)
}
