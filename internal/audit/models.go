package audit

import "time"

// Action classifies what happened to an event or decision as it moved
// through the pipeline.
type Action string

const (
	ActionEventReceived   Action = "event_received"
	ActionEventQueued     Action = "event_queued"
	ActionEventSent       Action = "event_sent"
	ActionEventSuppressed Action = "event_suppressed"
	ActionEventEvicted    Action = "event_evicted"
	ActionConsentResolved Action = "consent_resolved"
	ActionQueueFlushed    Action = "queue_flushed"
)

// Entry is one append-only audit record. Keep it transport-agnostic so the
// database store and the Kafka sink can fan out from the same value.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    Action            `json:"action"`
	ClientID  string            `json:"client_id,omitempty"`
	EventName string            `json:"event_name,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Consent   string            `json:"consent,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}
