package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// start opens the listeners and serves in the background. Errors from a
// server that stops unexpectedly are sent on the returned channel.
func (a *application) start(ctx context.Context) (<-chan error, error) {
	errCh := make(chan error, 2)

	ln, err := net.Listen("tcp", a.cfg.Server.Address)
	if err != nil {
		return nil, err
	}
	a.server = &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout.Duration(),
		ReadTimeout:       a.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      a.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       a.cfg.Server.IdleTimeout.Duration(),
	}
	a.addr = ln.Addr().String()
	go serve(a.server, ln, errCh)

	a.logger.Info("proxy listening", observability.String("address", a.addr))

	if a.cfg.Metrics.Enabled {
		mln, err := net.Listen("tcp", a.cfg.Metrics.Address)
		if err != nil {
			_ = a.server.Close()
			return nil, err
		}
		a.metricsServer = &http.Server{
			Handler:           a.opsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		}
		go serve(a.metricsServer, mln, errCh)

		a.logger.Info("metrics server listening",
			observability.String("address", mln.Addr().String()),
			observability.String("metrics_path", a.cfg.Metrics.Path),
		)
	}

	a.watcher = a.startWatcher(ctx)

	return errCh, nil
}

// listenAddr returns the bound proxy address once started.
func (a *application) listenAddr() string {
	return a.addr
}

func serve(server *http.Server, ln net.Listener, errCh chan<- error) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- err
	}
}

// run serves until ctx is cancelled or a server fails.
func (a *application) run(ctx context.Context) error {
	errCh, err := a.start(ctx)
	if err != nil {
		a.logger.Error("failed to start", observability.Error(err))
		return err
	}
	return a.wait(ctx, errCh)
}

// wait blocks until ctx is cancelled or a server fails, then shuts down.
// SIGHUP triggers an explicit reload.
func (a *application) wait(ctx context.Context, errCh <-chan error) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("received shutdown signal")
			break loop
		case <-hup:
			_ = a.reload(ctx, []string{"SIGHUP"})
		case err := <-errCh:
			a.logger.Error("server error", observability.Error(err))
			runErr = err
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	a.shutdown(shutdownCtx)

	return runErr
}

// shutdown stops accepting requests and drains in-flight ones, then
// releases the remaining resources.
func (a *application) shutdown(ctx context.Context) {
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop proxy gracefully", observability.Error(err))
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	a.transports.CloseIdle()

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	a.logger.Info("devproxy stopped")
}
