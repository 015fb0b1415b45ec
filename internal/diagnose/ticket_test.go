package diagnose

import (
	"encoding/json"
	"testing"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

func testPayload(nPoints, nAnomalies int, level detection.SeverityLevel) *detection.Payload {
	return &detection.Payload{
		Scenario: "overload_trip",
		AssetID:  "bus_1",
		Summary: detection.Summary{
			NPoints:       nPoints,
			NAnomalies:    nAnomalies,
			AnomalyRate:   detection.AnomalyRate(nAnomalies, nPoints),
			SeverityLevel: level,
		},
		Windows: []detection.Window{
			{Start: "2025-01-01 00:00:40", End: "2025-01-01 00:00:59", NPoints: nAnomalies},
		},
		Meta: detection.Meta{Detector: "isolation_forest(trees=200,subsample=256)"},
	}
}

func TestNewTicketFields(t *testing.T) {
	tk := NewTicket(testPayload(100, 20, detection.SeverityHigh), nil)
	if tk.TicketID == "" {
		t.Error("ticket id not assigned")
	}
	if tk.FaultType != "sustained_overload" {
		t.Errorf("fault type = %s", tk.FaultType)
	}
	if tk.Severity != detection.SeverityHigh {
		t.Errorf("severity = %s", tk.Severity)
	}
	if tk.Status != StatusOpen {
		t.Errorf("status = %s", tk.Status)
	}
	if len(tk.Evidence) != 1 || tk.Evidence[0].NPoints != 20 {
		t.Errorf("evidence = %+v", tk.Evidence)
	}
	if tk.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestTicketSeverityDegenerates(t *testing.T) {
	cases := []struct {
		name       string
		nPoints    int
		nAnomalies int
		level      detection.SeverityLevel
		want       detection.SeverityLevel
	}{
		{"no data", 0, 0, detection.SeverityLow, detection.SeverityUnknown},
		{"clean run", 100, 0, detection.SeverityLow, detection.SeverityInfo},
		{"anomalous run", 100, 10, detection.SeverityModerate, detection.SeverityModerate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := NewTicket(testPayload(tc.nPoints, tc.nAnomalies, tc.level), nil)
			if tk.Severity != tc.want {
				t.Errorf("severity = %s, want %s", tk.Severity, tc.want)
			}
		})
	}
}

func TestTicketRecordRoundTrip(t *testing.T) {
	tk := NewTicket(testPayload(100, 20, detection.SeverityHigh), nil)
	tk.Summary = "sustained overcurrent on bus_1"

	rec, err := tk.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.ID != tk.TicketID || rec.Severity != "high" || rec.Status != StatusOpen {
		t.Errorf("record columns wrong: %+v", rec)
	}

	var decoded FaultTicket
	if err := json.Unmarshal(rec.Document, &decoded); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if decoded.Summary != tk.Summary || decoded.Detection.Summary.NAnomalies != 20 {
		t.Errorf("document lost fields: %+v", decoded)
	}
}
