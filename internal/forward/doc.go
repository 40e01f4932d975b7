// Package forward builds the per-request forward configuration and owns the
// HTTP transports used to reach destinations.
//
// Build is called for every proxied request and reads the destination's
// current credential state, so a Config must never be cached. Transports
// are long-lived and shared; one is kept for each combination of TLS
// verification and redirect following.
package forward
