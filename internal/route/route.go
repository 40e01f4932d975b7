package route

import (
	"fmt"
	"regexp"

	"github.com/vyrodovalexey/devproxy/internal/util"
)

// Kind is the kind of target a route points at.
type Kind int

// Target kinds.
const (
	KindService Kind = iota + 1
	KindDestination
)

// String returns the manifest spelling of the kind.
func (k Kind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindDestination:
		return "destination"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the manifest spelling of a target kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "service":
		return KindService, nil
	case "destination":
		return KindDestination, nil
	default:
		return 0, fmt.Errorf("unknown target type %q", s)
	}
}

// Target names what a route forwards to. Both kinds are looked up in the
// destination registry by Name.
type Target struct {
	Kind Kind
	Name string
}

// ServiceTarget returns a service target.
func ServiceTarget(name string) Target {
	return Target{Kind: KindService, Name: name}
}

// DestinationTarget returns a destination target.
func DestinationTarget(name string) Target {
	return Target{Kind: KindDestination, Name: name}
}

// Entry binds a path prefix to a target.
type Entry struct {
	Prefix    string
	Target    Target
	Version   string
	EntryPath string
}

type compiledEntry struct {
	Entry
	remainder *regexp.Regexp
}

// Table is an ordered, immutable collection of route entries.
type Table struct {
	entries []compiledEntry
}

// NewTable builds a table from entries in manifest order. An entry whose
// prefix was already seen replaces the earlier one at the earlier position.
// The root prefix "" is kept but never resolves.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{entries: make([]compiledEntry, 0, len(entries))}
	index := make(map[string]int, len(entries))

	for i, e := range entries {
		if e.Target.Name == "" {
			return nil, util.NewConfigError(fmt.Sprintf("routes[%d].target.name", i), "name is required")
		}
		if e.Target.Kind != KindService && e.Target.Kind != KindDestination {
			return nil, util.NewConfigError(fmt.Sprintf("routes[%d].target.type", i), "unknown target type")
		}

		re, err := regexp.Compile(regexp.QuoteMeta(e.Prefix) + "(/.*)")
		if err != nil {
			return nil, util.NewConfigErrorWithCause(fmt.Sprintf("routes[%d].path", i), "invalid path", err)
		}

		ce := compiledEntry{Entry: e, remainder: re}
		if pos, ok := index[e.Prefix]; ok {
			t.entries[pos] = ce
			continue
		}
		index[e.Prefix] = len(t.entries)
		t.entries = append(t.entries, ce)
	}

	return t, nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in table order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	for i := range t.entries {
		out[i] = t.entries[i].Entry
	}
	return out
}
