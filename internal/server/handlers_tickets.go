package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gridsight/gridsight-ai/internal/metrics"
)

// DiagnoseRequest selects a trace for fault diagnosis. Tuning overrides
// match DetectRequest.
type DiagnoseRequest struct {
	DetectRequest
}

// handleDiagnose runs detection plus knowledge-base retrieval and narrative
// generation, persists the resulting fault ticket and returns it.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DiagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Scenario == "" || req.AssetID == "" {
		writeError(w, http.StatusBadRequest, "scenario and asset_id are required")
		return
	}

	ctx := r.Context()
	ticket, err := s.coordinator.Diagnose(ctx, req.Scenario, req.AssetID, req.Start, req.End, s.detectionOptions(&req.DetectRequest))
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}

	rec, err := ticket.Record()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.SaveTicket(ctx, rec); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.TicketsCreated.WithLabelValues(ticket.Scenario, string(ticket.Severity)).Inc()
	s.logger.LogTicketCreated(ctx, ticket.TicketID, ticket.Scenario, ticket.AssetID, string(ticket.Severity))
	s.hub.broadcast("ticket.created", ticket)

	writeJSON(w, http.StatusOK, ticket)
}

// handleTickets lists persisted tickets, newest first. Supports limit and
// offset query parameters.
func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	recs, err := s.store.ListTickets(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// List responses carry the filter columns; the full document is served
	// by the per-ticket endpoint.
	type ticketSummary struct {
		ID        string `json:"id"`
		Scenario  string `json:"scenario"`
		AssetID   string `json:"asset_id"`
		Severity  string `json:"severity"`
		Status    string `json:"status"`
		CreatedAt string `json:"created_at"`
	}
	summaries := make([]ticketSummary, len(recs))
	for i, rec := range recs {
		summaries[i] = ticketSummary{
			ID:        rec.ID,
			Scenario:  rec.Scenario,
			AssetID:   rec.AssetID,
			Severity:  rec.Severity,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tickets": summaries})
}

// handleTicketByID serves the full stored ticket document.
func (s *Server) handleTicketByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tickets/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "ticket id is required")
		return
	}

	rec, err := s.store.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(rec.Document)
}
