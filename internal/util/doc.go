// Package util provides shared error types and request-context helpers
// for the development proxy.
//
// # Error Conventions
//
// The proxy distinguishes three kinds of failure:
//
//   - ConfigError: a route manifest, destination descriptor or process
//     configuration is missing or malformed. Fatal at startup; a failed
//     reload keeps the previous state.
//   - ErrUnresolved: no route or no usable destination. Not an error from
//     the client's point of view; the request passes to the next handler.
//   - ForwardError: the transport failed to reach the destination. The
//     destination's credentials are reset and the error is surfaced to the
//     hosting layer's error handler.
//
// All structured error types implement Error(), Unwrap() (if wrapping) and
// Is() so that callers can rely on errors.Is and errors.As.
package util
