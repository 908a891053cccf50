package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/gomarketplace/internal/store"
	apperrors "github.com/utafrali/gomarketplace/pkg/errors"
	"github.com/utafrali/gomarketplace/pkg/health"
	"github.com/utafrali/gomarketplace/pkg/httputil"
	"github.com/utafrali/gomarketplace/pkg/middleware"
)

// RouterConfig carries the settings NewRouter needs beyond its dependencies.
type RouterConfig struct {
	ServiceName string
	CORSOrigins []string
}

// NewRouter creates a chi router serving cart, health and metrics endpoints.
func NewRouter(cart store.Cart, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSOrigins
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cors))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	cartHandler := NewCartHandler(logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFound("route", r.URL.Path), logger)
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(Provide(cart))

		r.Get("/", cartHandler.GetCart)
		r.Post("/items", cartHandler.AddItem)
		r.Post("/items/{id}/increment", cartHandler.IncrementItem)
		r.Post("/items/{id}/decrement", cartHandler.DecrementItem)
	})

	return r
}
