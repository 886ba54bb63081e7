package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeBatchPersisted = "batch_persisted"
	TypeRunFinished    = "run_finished"
)

// RunEvent is one progress notification of a shallow run.
type RunEvent struct {
	ID    uuid.UUID `json:"id"`
	Type  string    `json:"type"`
	RunID string    `json:"run_id"`

	// Payload is a BatchPersisted or RunFinished serialized as JSON.
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// BatchPersisted is the payload of TypeBatchPersisted.
type BatchPersisted struct {
	Seq       int64 `json:"seq"`
	WorkerID  int   `json:"worker_id"`
	Size      int   `json:"size"`
	Failed    int   `json:"failed"`
	Completed int   `json:"completed"`
	Target    int   `json:"target"`
}

// RunFinished is the payload of TypeRunFinished.
type RunFinished struct {
	Claimed   int    `json:"claimed"`
	Completed int    `json:"completed"`
	Done      int    `json:"done"`
	Failed    int    `json:"failed"`
	Batches   int    `json:"batches"`
	Error     string `json:"error,omitempty"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *RunEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewRunEvent creates a RunEvent with the specified type and payload.
func NewRunEvent(eventType, runID string, payload any) (*RunEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &RunEvent{
		ID:        uuid.New(),
		Type:      eventType,
		RunID:     runID,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event. Handlers run on the emitting
	// goroutine and should return quickly.
	HandleEvent(ctx context.Context, event *RunEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *RunEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *RunEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *RunEvent) error
}
