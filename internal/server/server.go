// Package server assembles the route table: public pages, the user area and
// the admin area, each protected class behind one guard.
package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/sebuszqo/FinanceDashboard/internal/admin"
	"github.com/sebuszqo/FinanceDashboard/internal/api"
	"github.com/sebuszqo/FinanceDashboard/internal/auth"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/application"
	"github.com/sebuszqo/FinanceDashboard/internal/finance/interfaces"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/settings"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

const checkTimeout = 2 * time.Second

// Access is the class of visitors a route admits.
type Access int

const (
	Public Access = iota
	UserOnly
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case UserOnly:
		return "user"
	case AdminOnly:
		return "admin"
	}
	return "unknown"
}

// Route binds a path and everything below it to an access class. The pages
// themselves are registered by the owning package.
type Route struct {
	Path   string
	Access Access
}

var Routes = []Route{
	{"/", Public},
	{"/login", Public},
	{"/register", Public},
	{"/forgot-password", Public},
	{"/logout", Public},

	{"/home", UserOnly},
	{"/transactions", UserOnly},
	{"/budgets", UserOnly},
	{"/categories", UserOnly},
	{"/analytics", UserOnly},
	{"/wallet", UserOnly},
	{"/settings", UserOnly},

	{"/admin", AdminOnly},
	{"/admin/users", AdminOnly},
	{"/admin/analytics", AdminOnly},
	{"/admin/transactions", AdminOnly},
}

// authPosts are rate limited per client IP.
var authPosts = []string{"/login", "/register", "/forgot-password"}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Options struct {
	Registry *session.Registry
	// Client is the unbound backend client; each request binds it to the
	// session's token store.
	Client   *api.Client
	Renderer *view.Renderer
	Static   fs.FS
	Checks   map[string]Check
	Logger   *applog.Logger

	SecureCookies     bool
	HydrationWait     time.Duration
	AuthRatePerMinute int
	Headers           HeadersConfig
}

type Server struct {
	opts    Options
	logger  *applog.Logger
	limiter *rateLimiter
	handler http.Handler
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Headers == (HeadersConfig{}) {
		opts.Headers = DefaultHeadersConfig()
	}
	s := &Server{
		opts:    opts,
		logger:  opts.Logger.WithComponent(applog.ComponentHTTP),
		limiter: newRateLimiter(opts.AuthRatePerMinute, opts.Logger),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// SweepLimiter drops idle rate-limit buckets. main calls it on a ticker.
func (s *Server) SweepLimiter() int {
	return s.limiter.sweep()
}

func (s *Server) client(r *http.Request) *api.Client {
	if sess := session.FromContext(r.Context()); sess != nil {
		return s.opts.Client.WithTokens(sess.Tokens())
	}
	return s.opts.Client
}

func (s *Server) routes() http.Handler {
	render := s.opts.Renderer.Render

	// The auth calls need no bearer token. Login writes the issued pair
	// straight into the session's store.
	authHandler := auth.NewHandler(auth.NewAuthService(s.opts.Client, s.opts.Logger), render, s.opts.Logger)
	financeHandler := interfaces.NewHandler(
		func(r *http.Request) application.FinanceAPI { return s.client(r) },
		application.NewDashboardService(s.opts.Logger),
		render,
		authHandler.SignOut,
		s.opts.Logger,
	)
	settingsHandler := settings.NewHandler(
		func(r *http.Request) settings.ProfileAPI { return s.client(r) },
		render,
		authHandler.SignOut,
		s.opts.Logger,
	)
	adminHandler := admin.NewHandler(
		func(r *http.Request) admin.AdminAPI { return s.client(r) },
		render,
		authHandler.SignOut,
		s.opts.Logger,
	)

	// Public routes
	publicRoutes := http.NewServeMux()
	authHandler.RegisterRoutes(publicRoutes)
	publicRoutes.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, "welcome", view.Page{Title: "Welcome"})
	})
	publicRoutes.HandleFunc("/", s.notFound)

	// Protected routes, one guard per access class
	userRoutes := http.NewServeMux()
	financeHandler.RegisterRoutes(userRoutes)
	settingsHandler.RegisterRoutes(userRoutes)
	userRoutes.HandleFunc("/", s.notFound)

	adminRoutes := http.NewServeMux()
	adminHandler.RegisterRoutes(adminRoutes)
	adminRoutes.HandleFunc("/", s.notFound)

	userGuard := s.guard(0)
	adminGuard := s.guard(user.NewRoleSet(user.RoleAdmin))

	app := http.NewServeMux()
	app.Handle("/", publicRoutes)
	for _, p := range authPosts {
		app.Handle(p, s.limiter.Middleware(publicRoutes))
	}
	// One guard per class, shared by every page of that class.
	protected := map[Access]http.Handler{
		UserOnly:  userGuard.Middleware(userRoutes),
		AdminOnly: adminGuard.Middleware(adminRoutes),
	}
	for _, rt := range Routes {
		h, ok := protected[rt.Access]
		if !ok {
			continue
		}
		app.Handle(rt.Path, h)
		app.Handle(rt.Path+"/", h)
	}

	var appHandler http.Handler = app
	appHandler = csrf(s.opts.SecureCookies, s.logger)(appHandler)
	appHandler = sessions(s.opts.Registry, s.opts.HydrationWait, s.opts.SecureCookies, s.logger)(appHandler)
	appHandler = withRequestID(appHandler)

	// Main router
	mainRouter := http.NewServeMux()
	mainRouter.HandleFunc("GET /healthz", s.handleHealth)
	mainRouter.HandleFunc("GET /readyz", s.handleReady)
	if s.opts.Static != nil {
		mainRouter.Handle("GET /static/", http.StripPrefix("/static/", staticCache(http.FileServerFS(s.opts.Static))))
	}
	mainRouter.Handle("/", appHandler)

	var h http.Handler = mainRouter
	h = securityHeaders(s.opts.Headers)(h)
	h = applog.Recover(s.opts.Logger)(h)
	h = applog.Middleware(s.opts.Logger)(h)
	return h
}

func (s *Server) guard(required user.RoleSet) *auth.Guard {
	return &auth.Guard{
		Required: required,
		State: func(r *http.Request) (bool, *user.Profile) {
			sess := session.FromContext(r.Context())
			if sess == nil {
				return false, nil
			}
			st := sess.State()
			return st.Loading, st.User
		},
		Pending: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Refresh", "1")
			s.opts.Renderer.Render(w, r, http.StatusOK, "loading", view.Page{Title: "Loading"})
		}),
		Denied: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.opts.Renderer.Render(w, r, http.StatusForbidden, "denied", view.Page{Title: "Access denied"})
		}),
		Logger: s.opts.Logger,
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.opts.Renderer.Render(w, r, http.StatusNotFound, "not_found", view.Page{Title: "Not found"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs every dependency check and reports 503 when any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "down: " + err.Error()
			s.logger.WarnContext(r.Context(), "readiness check failed", "check", name, applog.FieldError, err.Error())
			continue
		}
		checks[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	respondJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func staticCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

// withRequestID forwards the request ID to backend calls.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := w.Header().Get(applog.RequestIDHeader); id != "" {
			r = r.WithContext(api.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
