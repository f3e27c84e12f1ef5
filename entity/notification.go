package entity

import "time"

// Notification kinds, mirrored in the emit_event field of the wire payload.
const (
	KindEventRequest   = "event_request"
	KindNewParticipant = "new_participant"
)

// Notification is an ephemeral message handed to the notification gateway.
// The core does not persist it; the gateway keeps per-recipient audit
// copies. Delivery is best-effort and never blocks or fails the business
// operation that produced it.
type Notification struct {
	Title     string                 `json:"title" bson:"title"`
	Message   string                 `json:"message" bson:"message"`
	EmitEvent string                 `json:"emit_event" bson:"emit_event"`
	EventSlug string                 `json:"event_slug,omitempty" bson:"event_slug,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
}
