// Package dispatch decides whether a resolved request is served from a
// local mirror, forwarded to a destination, or passed through.
package dispatch

import (
	"context"

	"github.com/vyrodovalexey/devproxy/internal/destination"
	"github.com/vyrodovalexey/devproxy/internal/route"
)

// DefaultFrameworkService is the service name whose resources may be
// served from a local mirror.
const DefaultFrameworkService = "sapui5"

// Outcome is the result of a dispatch decision.
type Outcome int

// Dispatch outcomes.
const (
	Unresolved Outcome = iota
	ServeLocal
	ServeProxy
)

// String returns a readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Unresolved:
		return "unresolved"
	case ServeLocal:
		return "local"
	case ServeProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Policy carries the process-wide local mirror settings.
type Policy struct {
	PreferLocal      bool
	FrameworkService string

	// Mirror is nil when no local mirror is configured.
	Mirror Mirror
}

// Decision is the outcome of Decide. Target is the mirror path for
// ServeLocal and the destination base URL for ServeProxy. Record is set
// only for ServeProxy.
type Decision struct {
	Outcome Outcome
	Target  string
	Record  *destination.Record
}

// ServeLocally reports whether the request is served from the mirror.
func (d Decision) ServeLocally() bool { return d.Outcome == ServeLocal }

// ServeByProxy reports whether the request is forwarded.
func (d Decision) ServeByProxy() bool { return d.Outcome == ServeProxy }

// Decide applies the dispatch rules in order: framework resources from the
// local mirror when preferred and present, then any destination with a base
// URL, otherwise unresolved.
func Decide(ctx context.Context, resolved route.Resolved, registry *destination.Registry, policy Policy) Decision {
	if resolved.Target.Kind == route.KindService &&
		resolved.Target.Name == policy.frameworkService() &&
		policy.PreferLocal &&
		policy.Mirror != nil &&
		policy.Mirror.Exists(ctx, resolved.Path) {
		return Decision{Outcome: ServeLocal, Target: resolved.Path}
	}

	if rec, ok := registry.Lookup(resolved.Target.Name); ok && rec.URL() != "" {
		return Decision{Outcome: ServeProxy, Target: rec.URL(), Record: rec}
	}

	return Decision{Outcome: Unresolved}
}

func (p Policy) frameworkService() string {
	if p.FrameworkService == "" {
		return DefaultFrameworkService
	}
	return p.FrameworkService
}
