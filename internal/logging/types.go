package logging

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Detection events
	EventDetectionStarted   EventType = "detection.started"
	EventDetectionCompleted EventType = "detection.completed"
	EventDetectionFailed    EventType = "detection.failed"

	// Ticket events
	EventTicketCreated EventType = "ticket.created"

	// Model events
	EventModelTrained     EventType = "model.trained"
	EventModelTrainFailed EventType = "model.train_failed"

	// Data events
	EventSignalsIngested EventType = "signals.ingested"
	EventKBReloaded      EventType = "kb.reloaded"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
)

// Result represents the outcome of an audited operation
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
)

// Event represents a single audit event
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Selection information
	Scenario string `json:"scenario,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`

	// Event details
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// Error information
	Error string `json:"error,omitempty"`

	// Duration tracking
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultPending,
		Metadata:  make(map[string]any),
	}
}

// WithCorrelationID sets the correlation ID for event tracking
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithSelection sets the scenario/asset the event concerns
func (e *Event) WithSelection(scenario, assetID string) *Event {
	e.Scenario = scenario
	e.AssetID = assetID
	return e
}

// WithDescription sets a human-readable description
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult sets the result of the event
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError sets error information
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Result = ResultFailure
	}
	return e
}

// WithDuration sets the duration in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value any) *Event {
	e.Metadata[key] = value
	return e
}
