package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFromError maps pipeline errors onto HTTP status codes. Unknown
// selections are 404, an untrained model is 409, bad tuning parameters and
// unparseable timestamps are 400, everything else is 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, detection.ErrDataNotFound):
		return http.StatusNotFound
	case errors.Is(err, detection.ErrModelNotTrained):
		return http.StatusConflict
	case errors.Is(err, detection.ErrInvalidConfiguration),
		errors.Is(err, detection.ErrMalformedTimestamp):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles readiness check requests. Ready means the server is
// running and the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running || s.store.Ping(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo reports the service configuration surface. Secrets are never
// included.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "gridsight-ai",
		"model_path":   s.models.Path(),
		"kb_documents": s.kbIndex.Len(),
		"llm_provider": s.config.LLM.Provider,
		"detection": map[string]any{
			"max_gap_seconds":    s.config.Detection.MaxGapSeconds,
			"min_points":         s.config.Detection.MinPoints,
			"moderate_threshold": s.config.Detection.ModerateThreshold,
			"high_threshold":     s.config.Detection.HighThreshold,
		},
	})
}
