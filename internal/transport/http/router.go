package http

import (
	"net/http"
	"time"

	"accountd/internal/observability/middleware"
	"accountd/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSOrigins []string
	// Per-IP limit on the endpoints that create verification records and
	// send mail. Zero disables limiting.
	IssueLimit  int
	IssueWindow time.Duration
}

func NewRouter(cfg RouterConfig, accounts service.AccountService, tokens service.TokenService) *chi.Mux {
	h := NewHandler(accounts, tokens)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Code-issuing endpoints get a tighter per-IP budget: each hit
		// can create a record and trigger an email.
		r.Group(func(r chi.Router) {
			if cfg.IssueLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.IssueLimit, cfg.IssueWindow))
			}
			r.Post("/registration", h.Register)
			r.Post("/reconfirmation", h.Reconfirm)
			r.Post("/password/restore", h.RestoreRequest)
		})

		r.Post("/confirmation", h.Confirm)
		r.Post("/authentication", h.Authenticate)
		r.Post("/token/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/password/restore/change", h.RestoreChange)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(tokens))
			r.Post("/password/change", h.ChangePassword)
			r.Get("/profile", h.Profile)
			r.Put("/profile", h.UpdateProfile)
		})
	})

	return r
}
