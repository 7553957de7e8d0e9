// Package api implements the watchdog's read-only status HTTP server.
//
// Endpoints:
//   - GET /api/v1/health  liveness, version and optional transport state
//   - GET /api/v1/status  monitor settings and the last check cycle
//   - GET /api/v1/metrics Go runtime statistics
//
// The server never changes watchdog state and carries no authentication;
// bind it to localhost (the default) or put it behind a reverse proxy.
//
// Middleware stack: request ID, request logging, panic recovery.
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
