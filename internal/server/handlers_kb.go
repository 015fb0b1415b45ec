package server

import (
	"net/http"
	"strconv"

	"github.com/gridsight/gridsight-ai/internal/metrics"
)

// handleKBSearch runs a keyword search over the loaded operating procedures.
// Query parameters: q (required), k (optional result count, default 5).
func (s *Server) handleKBSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	k := 5
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	metrics.KBSearchesTotal.Inc()
	citations := s.kbIndex.Search(query, k)

	writeJSON(w, http.StatusOK, map[string]any{
		"query":     query,
		"citations": citations,
	})
}
