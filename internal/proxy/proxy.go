package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/devproxy/internal/dispatch"
	"github.com/vyrodovalexey/devproxy/internal/forward"
	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

// ErrorHandler handles a failed forward. err is a *util.ForwardError.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Proxy routes requests to the local mirror, a destination or the next
// handler.
type Proxy struct {
	state         atomic.Pointer[State]
	transports    *forward.Transports
	logger        observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	errorHandler  ErrorHandler
	flushInterval time.Duration

	unroutable rate.Sometimes
}

// Option is a functional option for configuring the proxy.
type Option func(*Proxy)

// WithLogger sets the logger for the proxy.
func WithLogger(logger observability.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// WithMetrics records forward latency and failures.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = metrics
	}
}

// WithTracer opens a client span around each forward.
func WithTracer(tracer *observability.Tracer) Option {
	return func(p *Proxy) {
		p.tracer = tracer
	}
}

// WithTransports sets the destination transports.
func WithTransports(t *forward.Transports) Option {
	return func(p *Proxy) {
		p.transports = t
	}
}

// WithErrorHandler replaces the default 502 response for failed forwards.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(p *Proxy) {
		p.errorHandler = handler
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) Option {
	return func(p *Proxy) {
		p.flushInterval = interval
	}
}

// New creates a proxy serving state.
func New(state *State, opts ...Option) *Proxy {
	p := &Proxy{
		logger:        observability.NopLogger(),
		flushInterval: -1,
		unroutable:    rate.Sometimes{First: 3, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.transports == nil {
		p.transports = forward.NewTransports(forward.DefaultOptions())
	}
	if p.errorHandler == nil {
		p.errorHandler = p.defaultErrorHandler
	}
	p.state.Store(state)
	return p
}

// State returns the current routing state.
func (p *Proxy) State() *State {
	return p.state.Load()
}

// Swap replaces the routing state. In-flight requests keep the state they
// started with.
func (p *Proxy) Swap(state *State) {
	p.state.Store(state)
}

// Handler returns middleware that serves routed requests and passes the
// rest to next. A nil next responds 404.
func (p *Proxy) Handler(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, next)
	})
}

func (p *Proxy) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	state := p.state.Load()
	res := state.ResolveAndDispatch(ctx, r)

	logger := p.logger.WithContext(ctx)
	if logger.Enabled(zapcore.DebugLevel) {
		logResolution(logger, r, res)
	}

	switch res.Outcome {
	case dispatch.ServeLocal:
		observability.SetOutcome(ctx, observability.OutcomeLocal)
		p.serveLocal(w, r, state, res)
	case dispatch.ServeProxy:
		observability.SetOutcome(ctx, observability.OutcomeProxy)
		ctx = util.ContextWithRoute(ctx, res.Resolved.Prefix)
		ctx = util.ContextWithDestination(ctx, res.Decision.Record.Name())
		p.serveProxy(w, r.WithContext(ctx), state, res)
	default:
		if res.Resolved.Prefix != "" {
			p.unroutable.Do(func() {
				logger.Warn("route has no usable destination",
					observability.String("prefix", res.Resolved.Prefix),
					observability.String("target", res.Resolved.Target.Name),
				)
			})
		}
		observability.SetOutcome(ctx, observability.OutcomeUnresolved)
		next.ServeHTTP(w, r)
	}
}

func (p *Proxy) serveLocal(w http.ResponseWriter, r *http.Request, state *State, res Result) {
	out := r.Clone(r.Context())
	out.URL.Path = res.URL.Path
	out.URL.RawPath = ""
	state.Policy.Mirror.ServeHTTP(w, out)
}

func (p *Proxy) serveProxy(w http.ResponseWriter, r *http.Request, state *State, res Result) {
	name := res.Decision.Record.Name()

	if p.tracer != nil {
		ctx, span := p.tracer.StartSpan(r.Context(), "forward "+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("devproxy.destination", name),
				attribute.String("server.address", res.URL.Host),
			),
		)
		defer span.End()
		r = r.WithContext(ctx)
	}

	if res.Forward.PreserveWebsocket && isWebSocketUpgrade(r) {
		p.serveWebSocket(w, r, state, res)
		return
	}

	start := time.Now()
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			u := *res.URL
			pr.Out.URL = &u
			pr.Out.Host = ""
			if !res.Forward.ChangeOrigin {
				pr.Out.Host = pr.In.Host
			}
			pr.SetXForwarded()
			res.Forward.Apply(pr.Out.Header)
			observability.InjectTraceContext(pr.Out.Context(), pr.Out)
		},
		Transport:     p.transports.For(res.Forward),
		FlushInterval: p.flushInterval,
		ModifyResponse: func(resp *http.Response) error {
			p.observeResponse(state, name, resp)
			if p.metrics != nil {
				p.metrics.RecordForward(name, time.Since(start))
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.forwardFailed(w, r, state, name, res.Forward.Target, err)
		},
	}

	rp.ServeHTTP(w, r)
}

// observeResponse feeds the response headers of a forward into the
// credential lifecycle.
func (p *Proxy) observeResponse(state *State, name string, resp *http.Response) {
	state.Lifecycle.OnForwardResponse(name, cookiePairs(resp), resp.Header.Get(forward.HeaderCSRFToken))
}

// forwardFailed resets the destination's credentials and hands the error
// to the error handler.
func (p *Proxy) forwardFailed(w http.ResponseWriter, r *http.Request, state *State, name, target string, err error) {
	state.Lifecycle.OnForwardFailure(name)
	if p.metrics != nil {
		p.metrics.RecordForwardFailure(name)
	}
	p.errorHandler(w, r, util.NewForwardError(name, target, err))
}

// cookiePairs returns the name=value pairs of the cookies a response sets.
func cookiePairs(resp *http.Response) []string {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return pairs
}

func (p *Proxy) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	logger := p.logger.WithContext(r.Context())
	if errors.Is(err, context.Canceled) {
		logger.Debug("forward cancelled by client", observability.Error(err))
	} else {
		logger.Error("forward failed",
			observability.String("path", r.URL.Path),
			observability.String("method", r.Method),
			observability.Error(err),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = io.WriteString(w, `{"error":"bad gateway","message":"failed to proxy request"}`)
}

func logResolution(logger observability.Logger, r *http.Request, res Result) {
	fields := []observability.Field{
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("outcome", res.Outcome.String()),
	}
	if res.Resolved.Prefix != "" {
		fields = append(fields,
			observability.String("prefix", res.Resolved.Prefix),
			observability.String("target", res.Resolved.Target.Name),
			observability.String("kind", res.Resolved.Target.Kind.String()),
			observability.String("rewritten", res.Resolved.Path),
		)
	}
	if res.URL != nil {
		fields = append(fields, observability.String("url", redactURL(res.URL)))
	}
	logger.Debug("request resolved", fields...)
}

func redactURL(u *url.URL) string {
	if u.User == nil {
		return u.String()
	}
	c := *u
	c.User = nil
	return c.String()
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		headerContainsToken(r.Header, "Connection", "upgrade")
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
