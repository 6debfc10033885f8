package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/jw6ventures/volunteerportal/internal/api"
	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/http/csrf"
	"github.com/jw6ventures/volunteerportal/internal/http/ratelimit"
	"github.com/jw6ventures/volunteerportal/internal/metrics"
	"github.com/jw6ventures/volunteerportal/internal/store"
	"github.com/jw6ventures/volunteerportal/internal/ui"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires all HTTP routes for the UI and the JSON API.
func NewRouter(cfg *config.Config, store *store.Store, authService *auth.Service) http.Handler {
	return newRouter(cfg, store, store, authService)
}

func newRouter(cfg *config.Config, st *store.Store, health HealthChecker, authService *auth.Service) http.Handler {
	r := chi.NewRouter()

	clientIP := ratelimit.ByClientIP(cfg.TrustedProxies)
	// Auth endpoints: 5 requests per second, burst of 10
	authRateLimiter := ratelimit.New(rate.Limit(5), 10, 5*time.Minute, clientIP)
	// API endpoints: 20 requests per second, burst of 50
	apiRateLimiter := ratelimit.New(rate.Limit(20), 50, 5*time.Minute, clientIP)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(overrideMethod)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := health.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	uiHandler := ui.NewHandler(cfg, st, authService)
	r.Route("/auth", func(r chi.Router) {
		r.Use(authRateLimiter.Middleware())
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
	})

	r.With(authService.RequireSession, csrf.Middleware(cfg)).Post("/auth/logout", uiHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authService.RequireSession)
		r.Use(csrf.Middleware(cfg))
		r.Get("/", uiHandler.Dashboard)

		r.Get("/individual-events", uiHandler.IndividualEvents)
		r.Post("/individual-events", uiHandler.SaveIndividualEvent)
		r.Get("/individual-events/{id}/edit", uiHandler.EditIndividualEvent)
		r.Delete("/individual-events/{id}", uiHandler.DeleteIndividualEvent)
		r.Post("/individual-events/{id}/delete", uiHandler.DeleteIndividualEvent) // HTML form fallback

		r.Get("/tokens", uiHandler.Tokens)
		r.Post("/tokens", uiHandler.CreateToken)
		r.Post("/tokens/{id}/revoke", uiHandler.RevokeToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/admin/events", uiHandler.AdminEvents)
			r.Delete("/admin/events/{id}", uiHandler.DeleteEvent)
			r.Post("/admin/events/{id}/delete", uiHandler.DeleteEvent)
		})
	})

	apiHandler := api.NewHandler(st)
	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())
		r.Use(authService.RequireAPIAuth)
		r.Use(sessionCSRF(cfg))
		apiHandler.Routes(r)
	})

	return r
}

// sessionCSRF applies CSRF checks to API calls authenticated by a browser
// session; token-authenticated clients send no cookies and are exempt.
func sessionCSRF(cfg *config.Config) func(http.Handler) http.Handler {
	protect := csrf.Middleware(cfg)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.MethodFromContext(r.Context()) == auth.MethodSession {
				protected.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func overrideMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !isForm(r) {
			next.ServeHTTP(w, r)
			return
		}
		method := strings.TrimSpace(r.PostFormValue("_method"))
		if method == "" {
			method = strings.TrimSpace(r.URL.Query().Get("_method"))
		}
		switch strings.ToUpper(method) {
		case http.MethodPut, http.MethodDelete:
			r.Method = strings.ToUpper(method)
		}
		next.ServeHTTP(w, r)
	})
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}
