package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/domain"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/port"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps are the collaborators of the HTTP surface. Nil services disable the
// routes that need them; the operational endpoints always work.
type Deps struct {
	Facade   *action.Facade
	Queries  *service.Queries
	Overview *service.OverviewService
	Export   *service.ExportService

	// Store is pinged by /healthz.
	Store port.Pinger

	Verifier      *TokenVerifier
	WebhookSecret string
	Bulkhead      *resilience.Bulkhead

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, d.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Store, logger))
	r.Get("/readyz", readyzHandler())
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if d.Bulkhead != nil {
			r.Use(BulkheadMiddleware(d.Bulkhead, logger))
		}

		if d.Facade != nil {
			r.Post("/webhooks/identity", identityWebhookHandler(d.Facade, d.WebhookSecret, logger))
		}
		if d.Metrics != nil {
			r.Get("/metrics/cache", cacheMetricsHandler(d.Metrics))
		}

		r.Group(func(r chi.Router) {
			r.Use(OwnerMiddleware(d.Verifier, logger))

			// =============================================
			// Budgets & Loans
			// /v1/budgets, /v1/loans
			// =============================================
			if d.Facade != nil && d.Queries != nil {
				for _, kind := range domain.Kinds() {
					r.Route("/"+string(kind.Resource()), entryRoutes(kind, d, logger))
				}

				// =============================================
				// Todos
				// =============================================
				r.Get("/todos", listTodosHandler(d.Queries, logger))
				r.Post("/todos", createTodoHandler(d.Facade, logger))
				r.Patch("/todos/{id}", updateTodoHandler(d.Facade, logger))
				r.Delete("/todos/{id}", deleteTodoHandler(d.Facade))
			}

			// =============================================
			// Account, Overview & Export
			// =============================================
			if d.Facade != nil {
				r.Delete("/me", deleteMeHandler(d.Facade))
			}
			if d.Overview != nil {
				r.Get("/overview", overviewHandler(d.Overview, logger))
			}
			if d.Export != nil {
				r.Get("/export.xlsx", exportHandler(d.Export, logger))
			}
		})
	})

	return r
}

func entryRoutes(kind domain.Kind, d Deps, logger *zap.Logger) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", listEntriesHandler(kind, d.Queries, logger))
		r.Post("/", createEntryHandler(kind, d.Facade, logger))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getEntryHandler(kind, d.Queries, logger))
			r.Put("/", updateEntryHandler(kind, d.Facade, logger))
			r.Delete("/", deleteEntryHandler(kind, d.Facade))

			r.Get("/items", listItemsHandler(kind, d.Queries, logger))
			r.Post("/items", createItemHandler(kind, d.Facade, logger))
			r.Put("/items", updateItemsHandler(kind, d.Facade, logger))
			r.Post("/items/move", moveItemsHandler(kind, d.Facade, logger))
			r.Delete("/items/{itemId}", deleteItemHandler(kind, d.Facade))
		})
	}
}

// ============================================================
// Operational Handlers
// ============================================================

func healthzHandler(store port.Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "tracker-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(ctx)
			status := "healthy"
			h := domain.ServiceHealth{Name: "store", LatencyMs: time.Since(start).Milliseconds(), LastChecked: now}
			if err != nil {
				status = "unhealthy"
				h.Error = "unreachable"
				logger.Warn("health: store ping failed", zap.Error(err))
			}
			h.Status = status
			services = append(services, h)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		code := http.StatusOK
		if overallStatus == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
