package httptransport

import (
	"time"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/consent"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/identity"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/pipeline"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/middleware"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
)

// EventRequest is one inbound event. Channel marks it as a conversion that
// must go through the dedup ledger; SubjectID defaults to the visitor's
// client id when omitted.
type EventRequest struct {
	Name      string         `json:"name" validate:"required,max=128"`
	Params    map[string]any `json:"params"`
	Page      *PageRef       `json:"page"`
	Channel   string         `json:"channel" validate:"omitempty,max=64"`
	SubjectID string         `json:"subject_id" validate:"omitempty,max=256"`
	Geo       *GeoRef        `json:"geo"`

	Source   string `json:"utm_source"`
	Medium   string `json:"utm_medium"`
	Campaign string `json:"utm_campaign"`
	Content  string `json:"utm_content"`
	Term     string `json:"utm_term"`
}

// PageRef is the page snapshot attached to not-yet-enriched events.
type PageRef struct {
	URL   string `json:"url" validate:"required,max=2048"`
	Title string `json:"title" validate:"max=512"`
}

// GeoRef is a geolocation resolved by an upstream lookup, cached on the
// identity record and replayed onto later events.
type GeoRef struct {
	Country string `json:"country" validate:"max=64"`
	Region  string `json:"region" validate:"max=128"`
	City    string `json:"city" validate:"max=128"`
}

func (g GeoRef) toGeo() identity.Geo {
	return identity.Geo{Country: g.Country, Region: g.Region, City: g.City}
}

func (r EventRequest) attribution() identity.Attribution {
	return identity.Attribution{
		Source:   r.Source,
		Medium:   r.Medium,
		Campaign: r.Campaign,
		Content:  r.Content,
		Term:     r.Term,
	}
}

func (r EventRequest) subjectID(record identity.Record) string {
	if r.SubjectID != "" {
		return r.SubjectID
	}
	return record.ClientID
}

// submission builds the pipeline submission, folding identity, session and
// device context into the event params.
func (r EventRequest) submission(record identity.Record, geo *GeoRef, meta middleware.ClientMeta) pipeline.Submission {
	params := make(map[string]any, len(r.Params)+4)
	for k, v := range r.Params {
		params[k] = v
	}
	if record.ClientID != "" {
		params["client_id"] = record.ClientID
		params["session_id"] = record.SessionID
		params["session_count"] = record.SessionCount
	}
	if meta.UserAgent != "" {
		for k, v := range identity.ParseUserAgent(meta.UserAgent).Params() {
			params[k] = v
		}
	}
	cached := record.CachedGeo
	if geo != nil {
		g := geo.toGeo()
		cached = &g
	}
	if cached != nil {
		if cached.Country != "" {
			params["geo_country"] = cached.Country
		}
		if cached.Region != "" {
			params["geo_region"] = cached.Region
		}
		if cached.City != "" {
			params["geo_city"] = cached.City
		}
	}

	var page *queue.PageContext
	enriched := true
	if r.Page != nil {
		page = &queue.PageContext{URL: r.Page.URL, Title: r.Page.Title}
		enriched = false
	}
	return pipeline.Submission{
		Name:     r.Name,
		Params:   params,
		Page:     page,
		Enriched: enriched,
	}
}

// ConsentRequest resolves the decision from the explicit UI path, or applies
// a per-category split from a consent platform.
type ConsentRequest struct {
	Status     string          `json:"status" validate:"required,oneof=granted denied"`
	Categories map[string]bool `json:"categories" validate:"omitempty,max=8"`
	Source     string          `json:"source" validate:"omitempty,max=128"`
}

func (r ConsentRequest) source() string {
	if r.Source != "" {
		return r.Source
	}
	return "api"
}

func (r ConsentRequest) categories() map[consent.Category]bool {
	out := make(map[consent.Category]bool, len(r.Categories))
	for k, v := range r.Categories {
		out[consent.Category(k)] = v
	}
	return out
}

// EventResponse acknowledges an accepted event.
type EventResponse struct {
	Disposition string `json:"disposition"`
	ClientID    string `json:"client_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// ConsentResponse is the wire shape of the current decision.
type ConsentResponse struct {
	Status     string          `json:"status"`
	Categories map[string]bool `json:"categories,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Source     string          `json:"source,omitempty"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
}

func toConsentResponse(decision consent.Decision) ConsentResponse {
	resp := ConsentResponse{
		Status: string(decision.Status),
		Reason: string(decision.Reason),
		Source: decision.Source,
	}
	if len(decision.Categories) > 0 {
		resp.Categories = make(map[string]bool, len(decision.Categories))
		for k, v := range decision.Categories {
			resp.Categories[string(k)] = v
		}
	}
	if !decision.DecidedAt.IsZero() {
		decidedAt := decision.DecidedAt
		resp.DecidedAt = &decidedAt
	}
	return resp
}
