package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/devproxy/internal/destination"
	"github.com/vyrodovalexey/devproxy/internal/dispatch"
	"github.com/vyrodovalexey/devproxy/internal/forward"
	"github.com/vyrodovalexey/devproxy/internal/route"
)

// State is one generation of routing configuration.
type State struct {
	Routes    *route.Table
	Lifecycle *destination.Lifecycle
	Policy    dispatch.Policy
	VerifyTLS bool
}

// Registry returns the destination registry of the state.
func (s *State) Registry() *destination.Registry {
	if s == nil || s.Lifecycle == nil {
		return nil
	}
	return s.Lifecycle.Registry()
}

// Result is the outcome of ResolveAndDispatch. URL is the rewritten URL:
// an absolute destination URL for dispatch.ServeProxy and a mirror path for
// dispatch.ServeLocal. Forward is set only for dispatch.ServeProxy.
type Result struct {
	Outcome  dispatch.Outcome
	Resolved route.Resolved
	Decision dispatch.Decision
	URL      *url.URL
	Forward  forward.Config
}

// ResolveAndDispatch resolves r against the route table and decides how
// it is served. It never mutates the state.
func (s *State) ResolveAndDispatch(ctx context.Context, r *http.Request) Result {
	resolved, ok := s.Routes.Resolve(r.URL.EscapedPath(), r.Method)
	if !ok {
		return Result{Outcome: dispatch.Unresolved}
	}

	decision := dispatch.Decide(ctx, resolved, s.Registry(), s.Policy)
	res := Result{Outcome: decision.Outcome, Resolved: resolved, Decision: decision}

	switch decision.Outcome {
	case dispatch.ServeLocal:
		res.URL = &url.URL{Path: unescapePath(resolved.Path)}
	case dispatch.ServeProxy:
		cfg := forward.Build(decision.Record, r.Method, s.VerifyTLS)
		target, err := cfg.TargetURL()
		if err != nil {
			// A destination without a usable URL cannot be proxied.
			return Result{Outcome: dispatch.Unresolved, Resolved: resolved}
		}
		res.Forward = cfg
		res.URL = rewriteURL(target, resolved.Path, r.URL.RawQuery)
	case dispatch.Unresolved:
	}

	return res
}

// rewriteURL appends the escaped path to the target's base path.
func rewriteURL(target *url.URL, escapedPath, rawQuery string) *url.URL {
	u := *target
	u.RawPath = joinURLPath(target.EscapedPath(), escapedPath)
	u.Path = unescapePath(u.RawPath)
	u.RawQuery = rawQuery
	u.Fragment = ""
	return &u
}

func joinURLPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case strings.HasSuffix(base, "/") && strings.HasPrefix(p, "/"):
		return base + p[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(p, "/"):
		return base + "/" + p
	default:
		return base + p
	}
}

func unescapePath(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}
