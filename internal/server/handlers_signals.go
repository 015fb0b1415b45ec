package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gridsight/gridsight-ai/internal/metrics"
	"github.com/gridsight/gridsight-ai/internal/store"
)

// IngestRequest carries a batch of signal rows for one scenario. Rows may
// omit the scenario field; the batch scenario applies.
type IngestRequest struct {
	Scenario    string            `json:"scenario"`
	Description string            `json:"description,omitempty"`
	Rows        []store.SignalRow `json:"rows"`
}

// handleSignalsIngest appends a batch of signal rows and registers the
// scenario.
func (s *Server) handleSignalsIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Scenario == "" {
		writeError(w, http.StatusBadRequest, "scenario is required")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows cannot be empty")
		return
	}
	for i := range req.Rows {
		if req.Rows[i].Scenario == "" {
			req.Rows[i].Scenario = req.Scenario
		}
	}

	ctx := r.Context()
	if err := s.store.AppendSignals(ctx, req.Rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.UpsertScenario(ctx, req.Scenario, req.Description); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.SignalRowsIngested.WithLabelValues(req.Scenario).Add(float64(len(req.Rows)))
	s.logger.LogSignalsIngested(ctx, req.Scenario, len(req.Rows))

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": req.Scenario,
		"rows":     len(req.Rows),
	})
}

// SeedRequest parameterizes synthetic scenario generation.
type SeedRequest struct {
	NPoints int   `json:"n_points,omitempty"`
	Seed    int64 `json:"seed,omitempty"`
}

// handleSignalsSeed populates the database with the built-in synthetic
// scenarios. Intended for demos and fresh installs.
func (s *Server) handleSignalsSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SeedRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}
	if req.NPoints == 0 {
		req.NPoints = 900
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	ctx := r.Context()
	if err := store.SeedSyntheticData(ctx, s.store, req.NPoints, req.Seed); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scenarios, err := s.store.ListScenarios(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rowsPerScenario := req.NPoints * len(store.SyntheticAssets)
	for _, sc := range scenarios {
		metrics.SignalRowsIngested.WithLabelValues(sc.Name).Add(float64(rowsPerScenario))
		s.logger.LogSignalsIngested(ctx, sc.Name, rowsPerScenario)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"n_points":  req.NPoints,
		"seed":      req.Seed,
		"scenarios": scenarios,
	})
}

// handleScenarios lists the scenarios present in the database.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	scenarios, err := s.store.ListScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenarios})
}
