package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobRequestEvent is a request to schedule a background job of the given type.
type JobRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type names the job that should be created
	Type string `json:"type"`

	// Payload carries job-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *JobRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewJobRequestEvent creates a JobRequestEvent with the specified type and payload.
func NewJobRequestEvent(eventType string, payload interface{}) (*JobRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &JobRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes job request events.
type EventHandler interface {
	// HandleEvent returns an error if the event cannot be handled.
	HandleEvent(ctx context.Context, event *JobRequestEvent) error
}

// EventEmitter publishes job request events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *JobRequestEvent) error
}
