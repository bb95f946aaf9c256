package httpserver

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/yndnr/mirrorsync/internal/server/httpserver/handler"
	"github.com/yndnr/mirrorsync/internal/storage"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// RPCPath and RPCHandler mount the storage service, as returned by
	// rpcserver.Service.Handler.
	RPCPath    string
	RPCHandler http.Handler

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Backend answers readiness and status.
	Backend storage.Backend

	// Logger for request logging.
	Logger *slog.Logger

	// AuthToken guards the RPC service and /status. Empty disables auth.
	AuthToken string

	// AllowList is the IP/CIDR allowlist for the RPC service (empty = no restriction).
	AllowList []string

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string

	// RateLimit is the per-IP request rate for the RPC service; zero disables it.
	RateLimit float64
	RateBurst int

	// AccessLog enables a log line per completed request.
	AccessLog bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 200,
		RateBurst: 400,
		AccessLog: true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backend := cfg.Backend
	if backend == nil {
		backend = storage.NewNoop()
	}

	h := handler.New(backend, logger)
	mux := http.NewServeMux()

	base := []Middleware{Recover(logger), RequestID()}
	if cfg.AccessLog {
		base = append(base, AccessLog(logger))
	}

	// Probes stay unauthenticated.
	open := Chain(h, base...)
	mux.Handle("GET /healthz", open)
	mux.Handle("GET /readyz", open)
	mux.Handle("GET /version", open)

	guarded := append(append([]Middleware{}, base...),
		NetworkACL(&NetworkACLConfig{AllowList: cfg.AllowList, Logger: logger}),
		Auth(cfg.AuthToken),
	)
	mux.Handle("GET /status", Chain(h, guarded...))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, guarded...))
	}

	if cfg.RPCHandler != nil && cfg.RPCPath != "" {
		rpc := append(append([]Middleware{}, base...),
			CORS(cfg.CORSAllowedOrigins),
			NetworkACL(&NetworkACLConfig{AllowList: cfg.AllowList, Logger: logger}),
			Auth(cfg.AuthToken),
		)
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst <= 0 {
				burst = int(cfg.RateLimit)
			}
			rpc = append(rpc, RateLimit(rate.Limit(cfg.RateLimit), burst))
		}
		mux.Handle(cfg.RPCPath, Chain(cfg.RPCHandler, rpc...))
	}

	return mux
}
