// Package diagnose turns detection payloads into operator-facing fault
// tickets, optionally narrated by an LLM over the knowledge base.
package diagnose

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridsight/gridsight-ai/internal/detection"
	"github.com/gridsight/gridsight-ai/internal/kb"
	"github.com/gridsight/gridsight-ai/internal/store"
)

// Ticket statuses.
const (
	StatusOpen         = "open"
	StatusAcknowledged = "acknowledged"
	StatusClosed       = "closed"
)

// EvidenceWindow is one anomalous interval cited by a ticket.
type EvidenceWindow struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	NPoints     int    `json:"n_points"`
	Description string `json:"description"`
}

// FaultTicket is the full diagnosis document handed to operators.
type FaultTicket struct {
	TicketID           string                  `json:"ticket_id"`
	Scenario           string                  `json:"scenario"`
	AssetID            string                  `json:"asset_id"`
	FaultType          string                  `json:"fault_type"`
	Severity           detection.SeverityLevel `json:"severity"`
	Status             string                  `json:"status"`
	Summary            string                  `json:"summary"`
	RootCause          string                  `json:"root_cause"`
	RecommendedActions []string                `json:"recommended_actions"`
	Evidence           []EvidenceWindow        `json:"evidence"`
	Citations          []kb.Citation           `json:"kb_citations"`
	Detection          *detection.Payload      `json:"detection"`
	CreatedAt          time.Time               `json:"created_at"`
}

// NewTicket builds the skeleton ticket for a detection payload: identity,
// severity grade, fault type and evidence windows. Narrative fields are
// filled in by the coordinator.
func NewTicket(payload *detection.Payload, citations []kb.Citation) *FaultTicket {
	evidence := make([]EvidenceWindow, len(payload.Windows))
	for i, w := range payload.Windows {
		evidence[i] = EvidenceWindow{
			Start:       w.Start,
			End:         w.End,
			NPoints:     w.NPoints,
			Description: fmt.Sprintf("%d anomalous samples on %s", w.NPoints, payload.AssetID),
		}
	}
	return &FaultTicket{
		TicketID:  uuid.NewString(),
		Scenario:  payload.Scenario,
		AssetID:   payload.AssetID,
		FaultType: faultType(payload.Scenario),
		Severity:  ticketSeverity(payload.Summary),
		Status:    StatusOpen,
		Evidence:  evidence,
		Citations: citations,
		Detection: payload,
		CreatedAt: time.Now().UTC(),
	}
}

// ticketSeverity grades a ticket from the detection summary. A run with no
// flagged points files as informational regardless of the classifier grade;
// a run with no points at all carries no evidence either way.
func ticketSeverity(s detection.Summary) detection.SeverityLevel {
	if s.NPoints == 0 {
		return detection.SeverityUnknown
	}
	if s.NAnomalies == 0 {
		return detection.SeverityInfo
	}
	return s.SeverityLevel
}

func faultType(scenario string) string {
	switch scenario {
	case store.ScenarioOverloadTrip:
		return "sustained_overload"
	case store.ScenarioMiscoordination:
		return "protection_miscoordination"
	case store.ScenarioTheftOverload:
		return "suspected_theft_overload"
	default:
		return "anomalous_behavior"
	}
}

// Record converts the ticket into its persisted form.
func (t *FaultTicket) Record() (*store.TicketRecord, error) {
	doc, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode ticket %s: %w", t.TicketID, err)
	}
	return &store.TicketRecord{
		ID:        t.TicketID,
		Scenario:  t.Scenario,
		AssetID:   t.AssetID,
		Severity:  string(t.Severity),
		Status:    t.Status,
		Document:  doc,
		CreatedAt: t.CreatedAt,
	}, nil
}
