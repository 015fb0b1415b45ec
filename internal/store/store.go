// Package store persists grid signal traces, scenario descriptors and fault
// tickets in a local SQLite database.
package store

import (
	"context"
	"time"

	"github.com/gridsight/gridsight-ai/internal/detection"
)

// FeatureColumns names the signal features the detector consumes, in the
// order SignalRow.Features emits them.
var FeatureColumns = []string{"voltage_kv", "current_a", "frequency_hz"}

// SignalRow is one 1 Hz sample of a bus-level electrical trace. Timestamps
// are stored as text exactly as ingested; relay flags record which
// protection elements asserted at that instant.
type SignalRow struct {
	Timestamp         string  `json:"timestamp"`
	AssetID           string  `json:"asset_id"`
	VoltageKV         float64 `json:"voltage_kv"`
	CurrentA          float64 `json:"current_a"`
	FrequencyHz       float64 `json:"frequency_hz"`
	Scenario          string  `json:"scenario"`
	RelayUndervoltage bool    `json:"relay_undervoltage"`
	RelayOvervoltage  bool    `json:"relay_overvoltage"`
	RelayOvercurrent  bool    `json:"relay_overcurrent"`
}

// Features returns the row's feature vector in FeatureColumns order.
func (r SignalRow) Features() []float64 {
	return []float64{r.VoltageKV, r.CurrentA, r.FrequencyHz}
}

// SignalQuery selects rows for one scenario, optionally narrowed to a single
// asset and/or a closed timestamp range. Empty fields mean unbounded.
type SignalQuery struct {
	Scenario string
	AssetID  string
	Start    string
	End      string
}

// Scenario describes one named operating scenario present in the database.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	NRows       int    `json:"n_rows"`
}

// TicketRecord is a persisted fault ticket. The full ticket document is kept
// as JSON alongside the columns the list endpoints filter on.
type TicketRecord struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	AssetID   string    `json:"asset_id"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Document  []byte    `json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

// SignalStore persists and serves signal traces.
type SignalStore interface {
	// AppendSignals inserts a batch of rows in one transaction.
	AppendSignals(ctx context.Context, rows []SignalRow) error

	// LoadSignals returns matching rows ordered by timestamp then asset.
	// An empty selection yields an error wrapping detection.ErrDataNotFound.
	LoadSignals(ctx context.Context, q SignalQuery) ([]SignalRow, error)

	// CountSignals returns the number of matching rows without loading them.
	CountSignals(ctx context.Context, q SignalQuery) (int, error)
}

// ScenarioStore tracks the named scenarios present in the database.
type ScenarioStore interface {
	UpsertScenario(ctx context.Context, name, description string) error
	ListScenarios(ctx context.Context) ([]Scenario, error)
}

// TicketStore persists fault tickets.
type TicketStore interface {
	SaveTicket(ctx context.Context, rec *TicketRecord) error

	// GetTicket returns the ticket or an error wrapping
	// detection.ErrDataNotFound when the id is unknown.
	GetTicket(ctx context.Context, id string) (*TicketRecord, error)

	ListTickets(ctx context.Context, limit, offset int) ([]*TicketRecord, error)
}

// Store is the full persistence surface.
type Store interface {
	SignalStore
	ScenarioStore
	TicketStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// SignalSource adapts a Store to the detector's row interface, projecting
// each signal row onto the fixed feature columns.
type SignalSource struct {
	Store SignalStore
}

// LoadFeatureRows implements detection.SignalSource.
func (s SignalSource) LoadFeatureRows(ctx context.Context, scenario, assetID, start, end string) ([]detection.FeatureRow, error) {
	rows, err := s.Store.LoadSignals(ctx, SignalQuery{
		Scenario: scenario,
		AssetID:  assetID,
		Start:    start,
		End:      end,
	})
	if err != nil {
		return nil, err
	}
	out := make([]detection.FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = detection.FeatureRow{Timestamp: r.Timestamp, Features: r.Features()}
	}
	return out, nil
}
