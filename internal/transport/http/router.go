package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/middleware"
)

// RouterConfig carries the transport-level knobs.
type RouterConfig struct {
	// IngestSecretHash is the bcrypt hash gating the event and consent
	// endpoints. Empty disables authentication.
	IngestSecretHash string
	RequestTimeout   time.Duration
}

// NewRouter mounts the API, health and metrics endpoints with the standard
// middleware stack.
func NewRouter(h *Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireSecret(cfg.IngestSecretHash, logger))
		h.Register(r)
	})
	return r
}

// Register mounts the API endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.HandleSubmitEvent)
	r.Post("/consent", h.HandleSubmitConsent)
	r.Get("/consent", h.HandleGetConsent)
}
