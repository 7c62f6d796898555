// Package notify publishes plan change events to a configured sink. Events
// are queued in-process and drained at a bounded rate; publishing is
// best-effort and never blocks or fails the write path.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the API layer.
const (
	EventPlanCreated    = "plan.created"
	EventPlanUpdated    = "plan.updated"
	EventPlanDeleted    = "plan.deleted"
	EventPlanBulkCreate = "plan.bulk_created"
	EventDetailsCreated = "details.created"
	EventDetailsUpdated = "details.updated"
	EventIconUpdated    = "icon.updated"
)

// Event is a single plan change notification.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	PlanID    string         `json:"plan_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// NewEvent creates an event with a fresh id and the current timestamp.
func NewEvent(eventType, planID string, detail map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		PlanID:    planID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
}

// Sink delivers events to their destination.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// NoopSink discards every event. Used when notifications are disabled.
type NoopSink struct{}

// Send discards the event.
func (NoopSink) Send(ctx context.Context, event Event) error { return nil }

// Close is a no-op.
func (NoopSink) Close() error { return nil }
