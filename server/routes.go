package server

import (
	"net/http"
	"strings"
)

// setupHTTPRoutes configures all HTTP handlers on the server's own mux
func (s *Server) setupHTTPRoutes() {
	s.mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.HandleJob))             // Individual job and sub-resources
	s.mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))             // List/submit jobs (GET/POST)
	s.mux.HandleFunc("/api/find", s.corsMiddleware(s.HandleFind))             // Resolve id/number/name pattern to a job id (GET)
	s.mux.HandleFunc("/api/report", s.corsMiddleware(s.HandleReport))         // Scalar report from a running process (POST)
	s.mux.HandleFunc("/api/conditions", s.corsMiddleware(s.HandleConditions)) // Register a notification condition (POST)
	s.mux.HandleFunc("/api/external/", s.corsMiddleware(s.HandleExternalJob)) // Unregister an external job (DELETE)
	s.mux.HandleFunc("/api/external", s.corsMiddleware(s.HandleExternalJobs)) // Register an external job (POST)
	s.mux.HandleFunc("/api/status", s.corsMiddleware(s.HandleStatus))         // Agent status summary (GET)
	s.mux.HandleFunc("/api/stop", s.corsMiddleware(s.HandleStop))             // Request daemon shutdown (POST)
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket)) // Job lifecycle event stream
}

// corsMiddleware adds CORS headers to HTTP responses using configured allowed origins
// Uses the same origin validation as WebSocket connections (server.allowed_origins config)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates an Origin header against localhost and the
// configured allowed origins. Requests without an Origin header (CLI, direct
// WebSocket clients, tests) are always allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}

	for _, allowedOrigin := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowedOrigin) {
			return true
		}
	}

	return false
}
