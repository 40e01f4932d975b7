package main

import (
	"context"
	"time"

	"github.com/vyrodovalexey/devproxy/internal/config"
	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// reload rebuilds the routing state and swaps it in. On failure the
// previous state keeps serving. In-flight requests finish on the state they
// started with; the new generation starts with seeded credentials.
func (a *application) reload(ctx context.Context, reason []string) error {
	start := time.Now()

	state, err := a.buildState(ctx)
	a.reloads.Record(err)
	a.metrics.RecordReload(err == nil)
	if err != nil {
		a.logger.Error("reload failed, keeping previous routing state",
			observability.Strings("changed", reason),
			observability.Error(err),
		)
		return err
	}

	a.proxy.Swap(state)

	a.logger.Info("routing state reloaded",
		observability.Strings("changed", reason),
		observability.Int("routes", state.Routes.Len()),
		observability.Int("destinations", state.Registry().Len()),
		observability.Duration("duration", time.Since(start)),
	)
	return nil
}

// startWatcher watches the route manifest and the destinations directory
// when enabled. A watcher that cannot start is logged and skipped.
func (a *application) startWatcher(ctx context.Context) *config.Watcher {
	if !a.cfg.Watch.Enabled {
		return nil
	}

	watcher, err := config.NewWatcher(a.cfg.WatchPaths(),
		func(changed []string) { _ = a.reload(ctx, changed) },
		config.WithLogger(a.logger),
		config.WithDebounceDelay(a.cfg.Watch.Debounce.Duration()),
	)
	if err != nil {
		a.logger.Warn("failed to create watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("failed to start watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}
