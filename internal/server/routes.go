package server

import (
	"net/http"

	"github.com/ahmethakanbesel/tgsearch-api/internal/job"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(jobSvc *job.Service, corsOrigins []string) http.Handler {
	return newMux(jobSvc, corsOrigins)
}

func newMux(jobSvc *job.Service, corsOrigins []string) http.Handler {
	h := &handler{jobSvc: jobSvc}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/v1/search", h.searchSync)
	mux.HandleFunc("POST /api/v1/search/jobs", h.submitJob)
	mux.HandleFunc("GET /api/v1/search/jobs/{id}", h.getJob)
	mux.HandleFunc("GET /api/v1/quota", h.quota)

	// recovery -> requestID -> logging -> cors
	var handler http.Handler = mux
	handler = cors(corsOrigins)(handler)
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
