// Package http wires the subsystem's handlers onto a ServeMux. Route
// patterns use the method-aware syntax; cross-cutting concerns (logging,
// rate limits, bearer auth) are httpx middleware.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/opswell/gatekeep/internal/auth/ipguard"
	"github.com/opswell/gatekeep/internal/auth/service"
	"github.com/opswell/gatekeep/internal/auth/store"
	"github.com/opswell/gatekeep/pkg/httpx"
	"github.com/opswell/gatekeep/pkg/jwtx"
	"github.com/opswell/gatekeep/pkg/slogx"
)

// PermSecurityRead and PermSecurityWrite gate the platform-admin security
// surface.
const (
	PermSecurityRead  = "security:read"
	PermSecurityWrite = "security:write"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	LoginService    *service.LoginService
	TokenService    *service.RefreshTokenService
	SecurityService *service.SecurityService
	IPGuard         ipguard.Cache

	// Strict and Moderate are the per-route throttle profiles. Override
	// before ApplyRoutes.
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Strict:       httpx.StrictLimit,
		Moderate:     httpx.ModerateLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerSecurityAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{LoginService: r.LoginService}

	// Credential endpoints take the strictest limit; they are the brute
	// force surface.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(login.HandleTenant),
			httpx.RateLimitByIP(r.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/platform/login",
		httpx.Chain(http.HandlerFunc(login.HandlePlatform),
			httpx.RateLimitByIP(r.Strict),
		),
	)

	// Step-up completion is credential-equivalent: it finishes a login.
	stepUp := &StepUpHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/step-up",
		httpx.Chain(stepUp,
			httpx.RateLimitByIP(r.Strict),
		),
	)

	refresh := &RefreshHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(r.Moderate),
		),
	)

	logout := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(r.Moderate),
		),
	)
}

func (r *Router) registerAccount() {
	// Self-service endpoints accept either session audience.
	authn := httpx.AuthnMiddleware(r.codec, jwtx.AudienceTenant, jwtx.AudiencePlatformAdmin)

	account := &AccountHandler{
		LoginService: r.LoginService,
		TokenService: r.TokenService,
	}

	r.Mux.Handle("POST /v1/account/logout-all",
		httpx.Chain(http.HandlerFunc(account.HandleLogoutAll),
			authn,
			httpx.RateLimitByIP(r.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/account/password",
		httpx.Chain(http.HandlerFunc(account.HandleChangePassword),
			authn,
			httpx.RateLimitByIP(r.Strict),
		),
	)
	r.Mux.Handle("POST /v1/account/mfa/enroll",
		httpx.Chain(http.HandlerFunc(account.HandleEnrollMFA),
			authn,
			httpx.RateLimitByIP(r.Moderate),
		),
	)
	r.Mux.Handle("GET /v1/account/sessions",
		httpx.Chain(http.HandlerFunc(account.HandleListSessions),
			authn,
			httpx.RateLimitByIP(r.Moderate),
		),
	)
}

func (r *Router) registerSecurityAdmin() {
	authn := httpx.AuthnMiddleware(r.codec, jwtx.AudiencePlatformAdmin)

	ips := &IPAdminHandler{IPGuard: r.IPGuard, SecurityService: r.SecurityService}
	r.Mux.Handle("GET /v1/security/ips",
		httpx.Chain(http.HandlerFunc(ips.HandleList),
			authn,
			httpx.RequireAnyPermission(PermSecurityRead, PermSecurityWrite),
			httpx.RateLimitByIP(r.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/security/ips/block",
		httpx.Chain(http.HandlerFunc(ips.HandleBlock),
			authn,
			httpx.RequireAnyPermission(PermSecurityWrite),
			httpx.RateLimitByIP(r.Moderate),
		),
	)
	r.Mux.Handle("DELETE /v1/security/ips/{ip}",
		httpx.Chain(http.HandlerFunc(ips.HandleUnblock),
			authn,
			httpx.RequireAnyPermission(PermSecurityWrite),
			httpx.RateLimitByIP(r.Moderate),
		),
	)

	events := &EventsHandler{SecurityService: r.SecurityService}
	r.Mux.Handle("GET /v1/security/events/{userID}",
		httpx.Chain(http.HandlerFunc(events.HandleListForUser),
			authn,
			httpx.RequireAnyPermission(PermSecurityRead, PermSecurityWrite),
			httpx.RateLimitByIP(r.Moderate),
		),
	)
	r.Mux.Handle("GET /v1/security/stats",
		httpx.Chain(http.HandlerFunc(events.HandleStats),
			authn,
			httpx.RequireAnyPermission(PermSecurityRead, PermSecurityWrite),
			httpx.RateLimitByIP(r.Moderate),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
