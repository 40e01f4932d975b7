package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/devproxy/internal/config"
	"github.com/vyrodovalexey/devproxy/internal/destination"
	"github.com/vyrodovalexey/devproxy/internal/dispatch"
	"github.com/vyrodovalexey/devproxy/internal/forward"
	"github.com/vyrodovalexey/devproxy/internal/health"
	"github.com/vyrodovalexey/devproxy/internal/middleware"
	"github.com/vyrodovalexey/devproxy/internal/observability"
	"github.com/vyrodovalexey/devproxy/internal/proxy"
	"github.com/vyrodovalexey/devproxy/internal/route"
	"github.com/vyrodovalexey/devproxy/internal/util"
)

// application holds all application components.
type application struct {
	cfg        *config.Config
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	transports *forward.Transports
	loader     *destination.Loader
	proxy      *proxy.Proxy
	health     *health.Checker
	reloads    *health.ReloadTracker

	addr          string
	server        *http.Server
	metricsServer *http.Server
	watcher       *config.Watcher
}

// newApplication builds every component and the initial routing state. A
// manifest or destination problem fails here: the proxy never starts with a
// partial routing table.
func newApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(cfg.Metrics.Namespace),
		reloads: &health.ReloadTracker{},
	}
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	app.tracer = tracer

	loaderOpts := []destination.LoaderOption{destination.WithLoaderLogger(logger)}
	if v := cfg.Destinations.Vault; v != nil {
		resolver, err := destination.NewVaultResolver(destination.VaultConfig{
			Address:   v.Address,
			Token:     v.Token,
			Namespace: v.Namespace,
			Mount:     v.Mount,
			Timeout:   v.Timeout.Duration(),
		})
		if err != nil {
			return nil, util.NewConfigErrorWithCause("destinations.vault", "cannot create vault client", err)
		}
		loaderOpts = append(loaderOpts, destination.WithSecretResolver(resolver))
	}
	app.loader = destination.NewLoader(loaderOpts...)

	app.transports = forward.NewTransports(transportOptions(cfg.Upstream))

	state, err := app.buildState(ctx)
	if err != nil {
		return nil, err
	}

	app.proxy = proxy.New(state,
		proxy.WithLogger(logger),
		proxy.WithMetrics(app.metrics),
		proxy.WithTracer(tracer),
		proxy.WithTransports(app.transports),
		proxy.WithFlushInterval(flushInterval(cfg.Upstream)),
	)

	app.health = health.NewChecker(version)
	app.health.RegisterCheck("routes", health.RoutesCheck(func() int {
		return app.proxy.State().Routes.Len()
	}))
	app.health.RegisterCheck("destinations", health.DestinationsCheck(func() int {
		return app.proxy.State().Registry().Len()
	}))
	app.health.RegisterCheck("reload", app.reloads.Check)

	logger.Info("routing state loaded",
		observability.Int("routes", state.Routes.Len()),
		observability.Strings("destinations", state.Registry().Names()),
		observability.Bool("prefer_local", state.Policy.PreferLocal),
		observability.Bool("strict_ssl", state.VerifyTLS),
	)

	return app, nil
}

// buildState loads the route manifest and destinations into a new routing
// generation. Credentials start from their seeded values.
func (a *application) buildState(ctx context.Context) (*proxy.State, error) {
	table, err := route.LoadManifest(a.cfg.Routes.Manifest)
	if err != nil {
		return nil, err
	}

	var seeds []destination.Seed
	if a.cfg.Destinations.Path != "" {
		seeds, err = a.loader.LoadDir(ctx, a.cfg.Destinations.Path)
		if err != nil {
			return nil, err
		}
	}
	registry := destination.NewRegistry(seeds)

	lifecycle := destination.NewLifecycle(registry,
		destination.WithLifecycleLogger(a.logger),
		destination.WithTransitionHook(a.metrics.RecordCredentialTransition),
	)

	policy, err := a.policy(registry)
	if err != nil {
		return nil, err
	}

	return &proxy.State{
		Routes:    table,
		Lifecycle: lifecycle,
		Policy:    policy,
		VerifyTLS: a.cfg.Upstream.VerifyTLS(),
	}, nil
}

// policy derives the local mirror settings. An explicit preferLocal wins;
// otherwise the framework destination's flag is used.
func (a *application) policy(registry *destination.Registry) (dispatch.Policy, error) {
	res := a.cfg.Resources
	policy := dispatch.Policy{FrameworkService: res.FrameworkService}

	switch {
	case res.PreferLocal != nil:
		policy.PreferLocal = *res.PreferLocal
	default:
		if rec, ok := registry.Lookup(res.FrameworkService); ok {
			policy.PreferLocal = rec.PreferLocal()
		}
	}

	if res.Path != "" {
		mirror, err := dispatch.NewDirMirror(res.Path)
		if err != nil {
			return policy, util.NewConfigErrorWithCause("resources.path", "cannot use resources directory", err)
		}
		policy.Mirror = mirror
	} else if policy.PreferLocal {
		a.logger.Warn("local framework resources preferred but no resources path configured")
	}

	return policy, nil
}

// handler builds the middleware chain around the proxy.
func (a *application) handler() http.Handler {
	var next http.Handler = http.NotFoundHandler()
	if dir := a.cfg.Webapp.Dir; dir != "" {
		next = http.FileServer(http.Dir(dir))
	}

	h := a.proxy.Handler(next)
	h = middleware.CORS(corsConfig(a.cfg.CORS))(h)
	h = observability.MetricsMiddleware(a.metrics)(h)
	h = observability.TracingMiddleware(a.tracer)(h)
	h = middleware.Logging(a.logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(a.logger)(h)

	return h
}

// opsHandler serves metrics and health endpoints.
func (a *application) opsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.metrics.Handler())
	a.health.RegisterRoutes(mux)
	return mux
}

func corsConfig(cfg config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	if cfg.AllowOrigin != "" {
		out.AllowOrigin = cfg.AllowOrigin
	}
	if len(cfg.AllowMethods) > 0 {
		out.AllowMethods = cfg.AllowMethods
	}
	if len(cfg.AllowHeaders) > 0 {
		out.AllowHeaders = cfg.AllowHeaders
	}
	out.MaxAge = cfg.MaxAge
	return out
}

func transportOptions(cfg config.UpstreamConfig) forward.Options {
	opts := forward.DefaultOptions()
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout.Duration()
	}
	if cfg.ResponseHeaderTimeout > 0 {
		opts.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout.Duration()
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		opts.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	return opts
}

// flushInterval keeps streaming responses unbuffered unless configured.
func flushInterval(cfg config.UpstreamConfig) time.Duration {
	if cfg.FlushInterval > 0 {
		return cfg.FlushInterval.Duration()
	}
	return -1
}
