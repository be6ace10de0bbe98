// Package httptransport is the inbound HTTP surface producers and consent
// tooling talk to. Handlers stay thin and delegate to the pipeline.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/consent"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/identity"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/pipeline"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/middleware"
	domainerrors "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/domain-errors"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/httputil"
)

// EventService is the producer-facing side of the pipeline.
type EventService interface {
	ShouldSend(name string, params map[string]any) bool
	Submit(ctx context.Context, sub pipeline.Submission) (pipeline.Disposition, error)
	TrackSafely(ctx context.Context, subjectID, channel string, sub pipeline.Submission) (bool, error)
}

// ConsentService exposes the decision to read and resolve.
type ConsentService interface {
	Current() consent.Decision
	Resolve(ctx context.Context, status consent.Status, reason consent.Reason, source string) error
	UpdateCategories(ctx context.Context, categories map[consent.Category]bool, source string) error
}

// IdentityService stamps session and attribution state per request.
type IdentityService interface {
	Touch(ctx context.Context, attribution identity.Attribution) (identity.Record, error)
	CacheGeo(ctx context.Context, geo identity.Geo) error
}

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// Handler wires the API endpoints to the pipeline services.
type Handler struct {
	events   EventService
	consent  ConsentService
	identity IdentityService
	logger   *slog.Logger
}

// New constructs the handler with its dependencies.
func New(events EventService, consentSvc ConsentService, identitySvc IdentityService, logger *slog.Logger) *Handler {
	return &Handler{
		events:   events,
		consent:  consentSvc,
		identity: identitySvc,
		logger:   logger,
	}
}

// HandleSubmitEvent handles POST /v1/events requests.
func (h *Handler) HandleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[EventRequest](w, r)
	if !ok {
		return
	}

	record, err := h.identity.Touch(ctx, req.attribution())
	if err != nil {
		h.logger.WarnContext(ctx, "identity touch failed",
			"request_id", requestID,
			"error", err,
		)
	}

	if req.Geo != nil {
		if err := h.identity.CacheGeo(ctx, req.Geo.toGeo()); err != nil {
			h.logger.WarnContext(ctx, "geo cache failed",
				"request_id", requestID,
				"error", err,
			)
		}
	}

	sub := req.submission(record, req.Geo, middleware.GetClientMeta(ctx))

	var disposition pipeline.Disposition
	if req.Channel != "" {
		var sent bool
		sent, err = h.events.TrackSafely(ctx, req.subjectID(record), req.Channel, sub)
		disposition = "tracked"
		if !sent && err == nil {
			err = domainerrors.New(domainerrors.CodeSuppressed, "duplicate conversion suppressed")
		}
	} else {
		disposition, err = h.events.Submit(ctx, sub)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "event submission failed",
			"request_id", requestID,
			"event", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event accepted",
		"request_id", requestID,
		"event", req.Name,
		"disposition", string(disposition),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusAccepted, EventResponse{
		Disposition: string(disposition),
		ClientID:    record.ClientID,
		SessionID:   record.SessionID,
	})
}

// HandleSubmitConsent handles POST /v1/consent requests: the explicit UI
// resolution source.
func (h *Handler) HandleSubmitConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ConsentRequest](w, r)
	if !ok {
		return
	}

	var err error
	if len(req.Categories) > 0 {
		err = h.consent.UpdateCategories(ctx, req.categories(), req.source())
	} else {
		err = h.consent.Resolve(ctx, consent.Status(req.Status), consent.ReasonButtonClick, req.source())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "consent resolution failed",
			"request_id", requestID,
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(h.consent.Current()))
}

// HandleGetConsent handles GET /v1/consent requests.
func (h *Handler) HandleGetConsent(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(h.consent.Current()))
}
