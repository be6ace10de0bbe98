package dedup

import "time"

// DefaultTTL bounds the re-send suppression window for conversion events.
const DefaultTTL = 30 * time.Minute

// Record marks one successful conversion send. Its presence suppresses every
// later attempt for the same (subject, channel) until the TTL elapses.
type Record struct {
	SubjectID string            `json:"subject_id"`
	Channel   string            `json:"channel"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Live reports whether the record still suppresses sends at the given time.
func (r Record) Live(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) < ttl
}

// Key builds the store key for a (subject, channel) pair.
func Key(subjectID, channel string) string {
	return channel + ":" + subjectID
}
