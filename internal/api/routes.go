package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/mailevents/internal/metrics"
)

// RouteDeps carries everything SetupRoutes mounts. Archive, Metrics and
// MetricsHandler are optional.
type RouteDeps struct {
	Handlers       *Handlers
	Health         *HealthChecker
	Archive        http.HandlerFunc
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	AllowedOrigins []string
}

// SetupRoutes configures all API routes.
func SetupRoutes(d RouteDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(metrics.Middleware(d.Metrics))
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	if d.Health != nil {
		r.Get("/health", d.Health.HandleHealth)
		r.Get("/health/live", d.Health.HandleLiveness)
		r.Get("/health/ready", d.Health.HandleReadiness)
	}
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}

	h := d.Handlers

	// SendGrid webhooks
	r.Post("/sendgrid-event", h.IngestEvents)
	if d.Archive != nil {
		r.Post("/sendgrid-webhook", d.Archive)
	}

	// Reports
	r.Get("/events", h.GetEvents)
	r.Route("/sg-reports/{number}", func(r chi.Router) {
		r.Get("/", h.GetAggregates)
		r.Delete("/", h.DeleteAggregate)
	})
	r.Get("/spam-reports", h.GetSpamReports)
	r.Delete("/spam-reports", h.ClearSpamReports)
	r.Get("/domains", h.GetDomains)

	// Short links
	r.Route("/api/shortlinks", func(r chi.Router) {
		r.Get("/health", h.ShortLinkHealth)
		r.Post("/", h.CreateShortLink)
		r.Get("/", h.ListShortLinks)
		r.Put("/{shortCode}", h.UpdateShortLink)
		r.Delete("/{shortCode}", h.DeleteShortLink)
	})

	return r
}
