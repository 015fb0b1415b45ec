package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRows(t *testing.T, scenario, asset string, n int) []SignalRow {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]SignalRow, n)
	for i := range rows {
		rows[i] = SignalRow{
			Timestamp:   base.Add(time.Duration(i) * time.Second).Format("2006-01-02 15:04:05"),
			AssetID:     asset,
			Scenario:    scenario,
			VoltageKV:   13.8,
			CurrentA:    100 + float64(i),
			FrequencyHz: 60,
		}
	}
	return rows
}

func TestAppendAndLoadSignals(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AppendSignals(ctx, sampleRows(t, "normal", "bus_1", 10)); err != nil {
		t.Fatalf("AppendSignals: %v", err)
	}

	got, err := st.LoadSignals(ctx, SignalQuery{Scenario: "normal", AssetID: "bus_1"})
	if err != nil {
		t.Fatalf("LoadSignals: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("loaded %d rows, want 10", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Fatalf("rows out of order at %d: %s < %s", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}
	if got[3].CurrentA != 103 {
		t.Errorf("row 3 current = %v, want 103", got[3].CurrentA)
	}
}

func TestLoadSignalsTimeWindow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	rows := sampleRows(t, "normal", "bus_1", 20)
	if err := st.AppendSignals(ctx, rows); err != nil {
		t.Fatalf("AppendSignals: %v", err)
	}

	got, err := st.LoadSignals(ctx, SignalQuery{
		Scenario: "normal",
		AssetID:  "bus_1",
		Start:    rows[5].Timestamp,
		End:      rows[9].Timestamp,
	})
	if err != nil {
		t.Fatalf("LoadSignals: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("loaded %d rows, want 5 (closed range)", len(got))
	}
}

func TestLoadSignalsNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.LoadSignals(context.Background(), SignalQuery{Scenario: "ghost", AssetID: "bus_9"})
	if !errors.Is(err, detection.ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}

func TestSignalSourceAdapter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.AppendSignals(ctx, sampleRows(t, "normal", "bus_1", 3)); err != nil {
		t.Fatalf("AppendSignals: %v", err)
	}

	src := SignalSource{Store: st}
	rows, err := src.LoadFeatureRows(ctx, "normal", "bus_1", "", "")
	if err != nil {
		t.Fatalf("LoadFeatureRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("loaded %d feature rows, want 3", len(rows))
	}
	if len(rows[0].Features) != len(FeatureColumns) {
		t.Fatalf("feature vector width %d, want %d", len(rows[0].Features), len(FeatureColumns))
	}
	if rows[1].Features[1] != 101 {
		t.Errorf("feature projection wrong: %v", rows[1].Features)
	}
}

func TestScenarioUpsertAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertScenario(ctx, "normal", "baseline"); err != nil {
		t.Fatalf("UpsertScenario: %v", err)
	}
	if err := st.UpsertScenario(ctx, "normal", "steady state"); err != nil {
		t.Fatalf("UpsertScenario update: %v", err)
	}
	if err := st.AppendSignals(ctx, sampleRows(t, "normal", "bus_1", 4)); err != nil {
		t.Fatalf("AppendSignals: %v", err)
	}

	scenarios, err := st.ListScenarios(ctx)
	if err != nil {
		t.Fatalf("ListScenarios: %v", err)
	}
	if len(scenarios) != 1 {
		t.Fatalf("listed %d scenarios, want 1", len(scenarios))
	}
	if scenarios[0].Description != "steady state" || scenarios[0].NRows != 4 {
		t.Errorf("unexpected scenario %+v", scenarios[0])
	}
}

func TestTicketRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := &TicketRecord{
		ID:       "tkt-001",
		Scenario: "overload_trip",
		AssetID:  "bus_1",
		Severity: "high",
		Status:   "open",
		Document: []byte(`{"summary":"sustained overcurrent"}`),
	}
	if err := st.SaveTicket(ctx, rec); err != nil {
		t.Fatalf("SaveTicket: %v", err)
	}

	got, err := st.GetTicket(ctx, "tkt-001")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Severity != "high" || string(got.Document) != `{"summary":"sustained overcurrent"}` {
		t.Errorf("ticket mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}

	list, err := st.ListTickets(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(list) != 1 || list[0].ID != "tkt-001" {
		t.Errorf("unexpected ticket list: %+v", list)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetTicket(context.Background(), "missing")
	if !errors.Is(err, detection.ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}
