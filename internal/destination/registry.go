package destination

import (
	"sort"
)

// Registry maps destination names to records. Its key set is fixed at
// construction.
type Registry struct {
	records map[string]*Record
}

// NewRegistry builds a registry from descriptors. A later descriptor with
// the same name replaces an earlier one.
func NewRegistry(seeds []Seed) *Registry {
	reg := &Registry{records: make(map[string]*Record, len(seeds))}
	for _, s := range seeds {
		reg.records[s.Name] = NewRecord(s)
	}
	return reg
}

// Lookup returns the record for name.
func (r *Registry) Lookup(name string) (*Record, bool) {
	if r == nil {
		return nil, false
	}
	rec, ok := r.records[name]
	return rec, ok
}

// Len returns the number of destinations.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Names returns the destination names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
