// Package httpserver hosts the mirrorsync-server HTTP endpoints.
//
// Routes:
//
//   - /mirrorsync.v1.StorageService/*: the storage RPC service
//   - /healthz, /readyz: liveness and backend readiness
//   - /version, /status: build and backend information
//   - /metrics: Prometheus exposition
//
// Every route runs behind Recover and RequestID. The RPC service is further
// guarded by NetworkACL, bearer token Auth, per-client RateLimit and CORS,
// each enabled by configuration.
package httpserver
