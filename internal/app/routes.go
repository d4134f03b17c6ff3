package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reshmi-chandran/graph-api-mvp/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Metrics
	r.HandleFunc("/api/metrics", deps.MetricsHandler.GetMetrics).Methods("GET")

	// Liveness
	r.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
}
