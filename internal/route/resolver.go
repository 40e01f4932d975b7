package route

import (
	"path"
	"strings"
)

// Resolved is the outcome of resolving a request path.
type Resolved struct {
	Prefix string
	Target Target
	Path   string
	Method string
}

// Resolve finds the longest prefix contained in urlPath and rewrites the
// path to version/entryPath/remainder. It reports false when nothing
// matches or when the matched prefix is not followed by a path separator.
// Resolve never mutates the table.
func (t *Table) Resolve(urlPath, method string) (Resolved, bool) {
	best := t.match(urlPath)
	if best == nil {
		return Resolved{}, false
	}

	m := best.remainder.FindStringSubmatch(urlPath)
	if m == nil {
		return Resolved{}, false
	}

	return Resolved{
		Prefix: best.Prefix,
		Target: best.Target,
		Path:   joinPath(best.Version, best.EntryPath, m[1]),
		Method: method,
	}, true
}

func (t *Table) match(urlPath string) *compiledEntry {
	if t == nil {
		return nil
	}

	var best *compiledEntry
	bestLen := 0
	for i := range t.entries {
		e := &t.entries[i]
		if len(e.Prefix) > bestLen && strings.Contains(urlPath, e.Prefix) {
			best = e
			bestLen = len(e.Prefix)
		}
	}
	return best
}

// joinPath joins the parts into an absolute, cleaned path. A trailing slash
// on the remainder is kept so directory requests stay directory requests.
func joinPath(version, entryPath, remainder string) string {
	joined := path.Join("/", version, entryPath, remainder)
	if strings.HasSuffix(remainder, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}
