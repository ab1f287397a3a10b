package httpserver

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/yndnr/abook-go/internal/core/guard"
	"github.com/yndnr/abook-go/internal/server/httpserver/handler"
	"github.com/yndnr/abook-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves every route.
	Handler *handler.Handler

	// Sessions answers token lookups for the guards.
	Sessions guard.SessionSource

	Logger *slog.Logger

	// Metrics records request metrics and serves /metrics. Optional.
	Metrics *metric.Registry

	// MetricsAuthRequired puts /metrics behind the admin guard.
	MetricsAuthRequired bool

	// AdminAllowList restricts the admin surface and /metrics (empty = no restriction).
	AdminAllowList []*net.IPNet

	// CookieName carries the admin session. Defaults to guard.DefaultCookieName.
	CookieName string

	// TrustProxyHeaders takes the client IP from proxy headers.
	TrustProxyHeaders bool

	// LoginRateLimit is the per-IP login rate in requests/second (0 = unlimited).
	LoginRateLimit float64
	LoginBurst     int

	// MaxBodyBytes caps request bodies (0 = unlimited).
	MaxBodyBytes int64
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Every request passes RequestID, Recover, Audit and BodyLimit. Routes then
// add their own guard: the client protocol rejects requests without a live
// bearer token, the admin home forwards them to a login descriptor, and the
// other admin routes reject them.
func NewRouter(cfg *RouterConfig) http.Handler {
	h := cfg.Handler
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	clientIP := ClientIP(cfg.TrustProxyHeaders)

	bearer := guard.NewChain(guard.BearerExtractor{}, cfg.Sessions)
	cookieOrBearer := guard.NewChain(
		guard.FirstOf(guard.CookieExtractor{Name: cfg.CookieName}, guard.BearerExtractor{}),
		cfg.Sessions,
	)

	loginLimiter := NewIPRateLimiter(cfg.LoginRateLimit, cfg.LoginBurst)
	acl := NetworkACL(cfg.AdminAllowList, clientIP, log)
	metrics := Metrics(cfg.Metrics)

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc, middlewares ...Middleware) {
		mux.Handle(pattern, Chain(fn, append([]Middleware{metrics}, middlewares...)...))
	}

	// Client protocol
	route("POST /api/login", h.Login, RateLimit(loginLimiter, clientIP))
	route("POST /api/ab/get", h.GetAddressBook, RequireUser(bearer, nil))
	route("POST /api/ab", h.SetAddressBook, RequireUser(bearer, nil))
	route("POST /api/currentUser", h.CurrentUser, RequireUser(bearer, nil))
	route("POST /api/audit", h.Audit)
	route("POST /api/logout", h.Logout, RequireUser(bearer, nil))

	// Admin surface
	route("POST /admin/login", h.AdminLogin, acl, RateLimit(loginLimiter, clientIP))
	route("GET /admin", h.AdminHome, acl, RequireAdmin(cookieOrBearer, http.HandlerFunc(h.AdminLoginRequired)))
	route("POST /admin/logout", h.AdminLogout, acl, RequireUser(cookieOrBearer, nil))
	route("GET /admin/v1/users", h.ListUsers, acl, RequireAdmin(cookieOrBearer, nil))
	route("GET /admin/v1/cache/stats", h.CacheStats, acl, RequireAdmin(cookieOrBearer, nil))
	route("POST /admin/v1/cache/flush", h.FlushCache, acl, RequireAdmin(cookieOrBearer, nil))

	// Probes
	route("GET /health", h.Health)
	route("GET /ready", h.Ready)

	if cfg.Metrics != nil {
		metricsMiddlewares := []Middleware{acl}
		if cfg.MetricsAuthRequired {
			metricsMiddlewares = append(metricsMiddlewares, RequireAdmin(cookieOrBearer, nil))
		}
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), metricsMiddlewares...))
	}

	base := []Middleware{RequestID(), Recover(log), Audit(log, clientIP)}
	if cfg.MaxBodyBytes > 0 {
		base = append(base, BodyLimit(cfg.MaxBodyBytes))
	}
	return Chain(mux, base...)
}
