package queue

import "time"

// DefaultTTL is how long a queued event survives without a consent decision.
const DefaultTTL = time.Hour

// Pacing defaults for flush delivery. Items are scheduled at
// base + index*increment so a flush never bursts the endpoint.
const (
	DefaultFlushBaseDelay = 100 * time.Millisecond
	DefaultFlushIncrement = 100 * time.Millisecond
)

// PageContext is the snapshot stored with a not-yet-enriched event so the
// forwarder can finish enrichment at delivery time.
type PageContext struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Event is one held-back behavioral event. Enriched events carry their fully
// resolved params; others carry minimal params plus the page snapshot.
type Event struct {
	Name       string         `json:"name"`
	Params     map[string]any `json:"params"`
	Page       *PageContext   `json:"page,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	Enriched   bool           `json:"enriched"`
}

// Expired reports whether the event is older than the eviction TTL.
func (e Event) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.EnqueuedAt) >= ttl
}
