package consent

import "time"

// Status is the resolution state of the privacy decision. Pending is initial;
// both terminal states are re-enterable because a visitor can change their
// mind, but a flip never replays already-flushed events.
type Status string

const (
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
)

// Reason records which resolution path produced the decision. The wire value
// for a timeout is "automatic_delay" to match what the collection endpoint
// expects in consent_reason.
type Reason string

const (
	ReasonButtonClick      Reason = "button_click"
	ReasonPlatformCallback Reason = "platform_callback"
	ReasonPassiveSignal    Reason = "passive_signal"
	ReasonAutomaticDelay   Reason = "automatic_delay"
)

// Category is one independently toggleable privacy purpose.
type Category string

const (
	CategoryAnalyticsStorage  Category = "analytics_storage"
	CategoryAdStorage         Category = "ad_storage"
	CategoryAdUserData        Category = "ad_user_data"
	CategoryAdPersonalization Category = "ad_personalization"
)

// AllCategories lists every category a decision covers.
var AllCategories = []Category{
	CategoryAnalyticsStorage,
	CategoryAdStorage,
	CategoryAdUserData,
	CategoryAdPersonalization,
}

// Decision is the one authoritative consent record. It is mutable across
// opposite flips and persisted with a much longer retention than operational
// state, because consent must outlive the data it governs.
type Decision struct {
	Status     Status            `json:"status"`
	Categories map[Category]bool `json:"categories"`
	Reason     Reason            `json:"reason,omitempty"`
	DecidedAt  time.Time         `json:"decided_at,omitempty"`
	Source     string            `json:"source,omitempty"`
}

// Resolved reports whether the status is terminal.
func (s Status) Resolved() bool {
	return s == StatusGranted || s == StatusDenied
}

// Resolved reports whether a terminal decision exists.
func (d Decision) Resolved() bool {
	return d.Status.Resolved()
}

// Allows reports whether the category is granted. A pending or denied
// decision allows nothing.
func (d Decision) Allows(category Category) bool {
	return d.Categories[category]
}

// NewDecision builds a uniform decision: a grant enables every category, a
// denial disables them all. Per-category splits come straight from the
// consent platform when it supplies them.
func NewDecision(status Status, reason Reason, source string, decidedAt time.Time) Decision {
	categories := make(map[Category]bool, len(AllCategories))
	for _, category := range AllCategories {
		categories[category] = status == StatusGranted
	}
	return Decision{
		Status:     status,
		Categories: categories,
		Reason:     reason,
		DecidedAt:  decidedAt,
		Source:     source,
	}
}
