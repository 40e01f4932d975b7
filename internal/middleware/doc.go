// Package middleware provides the HTTP middleware that wraps the proxy
// handler.
//
// # Middleware Components
//
//   - CORS: permissive cross-origin headers on every response and an
//     immediate 200 for OPTIONS preflights
//   - Request ID: X-Request-ID propagation and generation
//   - Recovery: panic recovery with stack trace logging
//   - Logging: structured access logging
//
// # Usage
//
// Middleware functions follow the standard Go pattern:
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.Logging(logger)(
//	            middleware.CORS(middleware.DefaultCORSConfig())(proxyHandler),
//	        ),
//	    ),
//	)
package middleware
