package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/lead-dispatch/internal/config"
	"github.com/xavierca1/lead-dispatch/internal/infra/http/handlers"
	"github.com/xavierca1/lead-dispatch/internal/infra/http/middleware"
)

type routerDeps struct {
	Config      *config.Config
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Leads       *handlers.LeadHandler
	Queue       *handlers.QueueHandler
	Health      *handlers.HealthHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.Config.Server.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Timezone"},
		MaxAge:         300,
	}))

	r.Get("/health", d.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.With(d.RateLimiter.Handler).Post("/leads", d.Leads.CaptureLead)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(d.Config.Server.AdminToken))
		r.Get("/queue", d.Queue.GetStatus)
		r.Post("/queue", d.Queue.HandleAction)
	})

	if d.Config.Server.AdminToken == "" {
		d.Logger.Warn("⚠️ ADMIN_TOKEN vazio: rotas /admin sem autenticação")
	}
	return r
}
