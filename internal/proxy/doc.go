// Package proxy hosts the routing core as HTTP middleware.
//
// For every request the middleware resolves the path against the route
// table, decides between the local mirror, a destination and the next
// handler, and for destinations forwards the request with an
// httputil.ReverseProxy whose response and error callbacks feed the
// credential lifecycle. Websocket upgrades to a destination are relayed
// with gorilla/websocket.
//
// The routing state (route table, destination registry, mirror policy) is
// held behind an atomic pointer so a configuration reload can replace it
// without blocking in-flight requests. Requests that started before a swap
// finish against the state they resolved with.
package proxy
