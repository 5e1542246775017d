package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hearthtask/notify-engine/internal/api/handler"
	apimw "github.com/hearthtask/notify-engine/internal/api/middleware"
	"github.com/hearthtask/notify-engine/internal/queue"
	"github.com/hearthtask/notify-engine/internal/service"
	"github.com/hearthtask/notify-engine/internal/tracker"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.EngineService,
	trk *tracker.Tracker,
	q *queue.PriorityQueue,
	pool *pgxpool.Pool,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	mh := handler.NewMessageHandler(svc, logger)
	rh := handler.NewRuleHandler(svc, logger)
	ph := handler.NewPreferenceHandler(svc, logger)
	sh := handler.NewStatsHandler(svc, logger)
	wh := handler.NewWebhookHandler(trk, logger)
	qh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler(pool)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Provider callbacks are outside the versioned API: their shape is
	// dictated by the providers, not by us.
	r.Post("/webhooks/delivery", wh.Deliver)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", mh.Enqueue)
		r.Get("/messages/{id}", mh.GetByID)
		r.Delete("/messages/{id}", mh.Cancel)

		r.Post("/rules", rh.Create)
		r.Get("/rules/{id}", rh.GetByID)
		r.Patch("/rules/{id}", rh.SetEnabled)

		r.Put("/preferences/{recipientId}", ph.Put)
		r.Get("/preferences/{recipientId}", ph.Get)

		r.Get("/stats", sh.Get)

		// JSON queue-depth snapshot
		r.Get("/metrics", qh.GetMetrics)
	})

	return r
}
