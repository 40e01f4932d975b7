package destination

import (
	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// Transition names reported to a TransitionHook.
const (
	TransitionLock    = "lock"
	TransitionUnlock  = "unlock"
	TransitionIgnored = "ignored"
)

// TransitionHook observes credential transitions.
type TransitionHook func(destination, transition string)

// Lifecycle applies forward outcomes to the records of a registry.
type Lifecycle struct {
	registry *Registry
	logger   observability.Logger
	hook     TransitionHook
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleLogger sets the logger.
func WithLifecycleLogger(logger observability.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithTransitionHook sets a hook called after every response or failure
// that concerns a known destination.
func WithTransitionHook(hook TransitionHook) LifecycleOption {
	return func(l *Lifecycle) {
		l.hook = hook
	}
}

// NewLifecycle creates a lifecycle manager over registry.
func NewLifecycle(registry *Registry, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		registry: registry,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the lifecycle operates on.
func (l *Lifecycle) Registry() *Registry {
	return l.registry
}

// OnForwardResponse records the cookies and token a destination returned.
// It does nothing if the destination is unknown or already locked. Missing
// headers are recorded as empty values.
func (l *Lifecycle) OnForwardResponse(name string, cookies []string, token string) {
	rec, ok := l.registry.Lookup(name)
	if !ok {
		return
	}

	if !rec.lock(cookies, token) {
		l.notify(name, TransitionIgnored)
		return
	}

	l.logger.Debug("credentials captured",
		observability.String("destination", name),
		observability.Int("cookies", len(cookies)),
		observability.Bool("token", token != "" && token != RequiredToken),
	)
	l.notify(name, TransitionLock)
}

// OnForwardFailure discards a destination's credentials after a failed
// forward so the next request negotiates from scratch. It does nothing if
// the destination is unknown or not locked.
func (l *Lifecycle) OnForwardFailure(name string) {
	rec, ok := l.registry.Lookup(name)
	if !ok {
		return
	}

	if !rec.unlock() {
		return
	}

	l.logger.Debug("credentials reset", observability.String("destination", name))
	l.notify(name, TransitionUnlock)
}

func (l *Lifecycle) notify(name, transition string) {
	if l.hook != nil {
		l.hook(name, transition)
	}
}
