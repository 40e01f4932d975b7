// Package destination holds the destination registry and the credential
// lifecycle that runs on top of it.
//
// A Registry is built from destination descriptors and never changes
// shape afterwards: records are neither added nor removed until the whole
// registry is replaced by a reload. Each Record carries immutable
// connection data (URL, precomputed Authorization header) and a small
// amount of mutable credential state (session cookie, anti-forgery token,
// lock flag) guarded by a per-record mutex.
//
// The Lifecycle type is the only writer of that state. The hosting proxy
// calls OnForwardResponse when a forward produced response headers and
// OnForwardFailure when the transport failed. Between an unlock and the
// next lock exactly one response is honored; later responses for an
// already locked record are dropped, so the first writer wins.
package destination
