package identity

import "time"

// DefaultIdleGap is the session boundary: an idle gap at or beyond this
// rotates the session ID and increments the session count.
const DefaultIdleGap = 30 * time.Minute

// Geo is the cached geolocation attached by an external lookup. The pipeline
// only stores and replays it.
type Geo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// Attribution is the last-touch campaign data carried on a page load.
type Attribution struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Content  string `json:"content,omitempty"`
	Term     string `json:"term,omitempty"`
}

// Empty reports whether the page load carried no attribution at all.
func (a Attribution) Empty() bool {
	return a == Attribution{}
}

// Record is the one logical identity record per deployment origin. It shares
// the operational retention window (default 24h); consent alone outlives it.
type Record struct {
	ClientID     string      `json:"client_id"`
	SessionID    string      `json:"session_id"`
	SessionStart time.Time   `json:"session_start"`
	SessionCount int         `json:"session_count"`
	FirstVisitAt time.Time   `json:"first_visit_at"`
	LastTouch    Attribution `json:"last_touch"`
	CachedGeo    *Geo        `json:"cached_geo,omitempty"`
	LastSeenAt   time.Time   `json:"last_seen_at"`
}
