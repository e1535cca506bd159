package routes

import (
	"net/http"

	"github.com/visionwell/vision-screening/backend/internal/api/handlers"
	"github.com/visionwell/vision-screening/backend/internal/api/middleware"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	workflowHandler  *handlers.WorkflowHandler
	studentHandler   *handlers.StudentHandler
	historyHandler   *handlers.HistoryHandler
	inventoryHandler *handlers.InventoryHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	workflowHandler *handlers.WorkflowHandler,
	studentHandler *handlers.StudentHandler,
	historyHandler *handlers.HistoryHandler,
	inventoryHandler *handlers.InventoryHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		workflowHandler:  workflowHandler,
		studentHandler:   studentHandler,
		historyHandler:   historyHandler,
		inventoryHandler: inventoryHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Screening session endpoints. The history route is registered before the
	// {id} routes so the mux does not treat "history" as a session id.
	r.mux.HandleFunc("GET /api/screening-sessions/history", r.historyHandler.SearchHistory)
	r.mux.HandleFunc("GET /api/screening-sessions/active", r.workflowHandler.GetActiveSession)

	r.mux.HandleFunc("POST /api/screening-sessions", r.workflowHandler.StartSession)
	r.mux.HandleFunc("GET /api/screening-sessions/{id}", r.workflowHandler.GetSession)
	r.mux.HandleFunc("PUT /api/screening-sessions/{id}/steps/{step}", r.workflowHandler.SaveStep)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/next", r.workflowHandler.Next)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/back", r.workflowHandler.Back)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/jump", r.workflowHandler.JumpToConsent)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/select-patient", r.workflowHandler.SelectStudent)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/inventory-check", r.workflowHandler.CheckInventory)
	r.mux.HandleFunc("POST /api/screening-sessions/{id}/complete", r.workflowHandler.Complete)

	// Student directory proxy endpoints
	r.mux.HandleFunc("GET /api/students", r.studentHandler.ListStudents)
	r.mux.HandleFunc("GET /api/students/{id}", r.studentHandler.GetStudent)

	// Frame catalog endpoints
	r.mux.HandleFunc("GET /api/glasses-frames", r.inventoryHandler.ListFrames)
	r.mux.HandleFunc("GET /api/glasses-frames/{code}", r.inventoryHandler.GetFrame)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available. Auth wraps the cache so a HIT is
	// never served to an unauthenticated client.
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.AuthMiddleware(handler)

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
