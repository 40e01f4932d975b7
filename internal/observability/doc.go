// Package observability provides logging, metrics, and tracing for the
// development proxy.
//
// # Logging
//
// Logger wraps zap behind a small interface so packages can accept a
// logger without importing zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "console"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer func() { _ = logger.Sync() }()
//
//	logger.Debug("route resolved",
//	    observability.String("path", "/sap/opu/odata/svc"),
//	    observability.String("destination", "erp"),
//	)
//
// # Metrics
//
// Metrics owns a private Prometheus registry with counters for dispatch
// outcomes, forward latency and credential transitions:
//
//	metrics := observability.NewMetrics("devproxy")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// Tracer exports server spans over OTLP/gRPC when enabled. A disabled
// tracer falls back to the global no-op provider.
package observability
