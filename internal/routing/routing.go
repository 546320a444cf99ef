package routing

import (
	"net/http"

	"atrium/internal/handlers"
	"atrium/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	Logger   zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Create CrossOriginProtection for CSRF protection on state-changing routes
	cop := http.NewCrossOriginProtection()

	// Public entity reads (visibility gated inside the handler)
	mux.HandleFunc("GET /api/users/{id}", h.HandleGetUser)
	mux.HandleFunc("GET /api/projects/{id}", h.HandleGetProject)

	// Entity registration, called by the wider platform on signup / project creation
	mux.Handle("POST /api/entities", cop.Handler(http.HandlerFunc(h.HandleRegisterEntity)))

	// Report submission
	mux.Handle("POST /api/reports", cop.Handler(http.HandlerFunc(h.HandleSubmitReport)))
	mux.HandleFunc("GET /api/reports/reasons", h.HandleListReportReasons)

	// Staff routes (permission checks inside the handlers)
	mux.HandleFunc("GET /api/admin/queue", h.HandleModerationQueue)
	mux.Handle("POST /api/admin/entities/{kind}/{id}/actions", cop.Handler(http.HandlerFunc(h.HandleApplyAction)))
	mux.Handle("POST /api/admin/entities/{kind}/{id}/dismiss", cop.Handler(http.HandlerFunc(h.HandleDismissReports)))
	mux.HandleFunc("GET /api/admin/entities/{kind}/{id}/reports", h.HandleEntityReports)
	mux.HandleFunc("GET /api/admin/audit", h.HandleAuditLog)
	mux.HandleFunc("GET /api/admin/staff", h.HandleListStaff)
	mux.HandleFunc("GET /api/admin/stats", h.HandleAdminStats)

	// Operational endpoints
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Trace requests
	handler = otelhttp.NewHandler(handler, "http.server")

	// 2. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 3. Apply logging middleware
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	// 4. Resolve the caller identity (outermost so the log line sees it)
	handler = middleware.ActorMiddleware(handler)

	return handler
}
