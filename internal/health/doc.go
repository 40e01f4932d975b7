// Package health provides the liveness, readiness and health endpoints of
// the development proxy.
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("routes", health.RoutesCheck(routeCount))
//	checker.RegisterRoutes(mux)
//
// Readiness reports 503 while any registered check is unhealthy.
package health
