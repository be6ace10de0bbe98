// Package forwarder delivers events to the collection endpoint over HTTP,
// wrapping them in encrypted tokens when a codec is configured.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/token"
	domainerrors "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/domain-errors"
)

// Result labels a completed send for metrics.
const (
	ResultSent     = "sent"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Envelope is the plaintext wire shape of one event. When encryption is on,
// the whole envelope travels inside the token instead.
type Envelope struct {
	Name               string         `json:"name"`
	Params             map[string]any `json:"params"`
	APICredential      string         `json:"api_credential,omitempty"`
	CredentialEncoding string         `json:"credential_encoding,omitempty"`
}

// Outcome is what a direct-send caller gets back.
type Outcome struct {
	Result string
	Body   map[string]any
}

// Forwarder posts events to the collection endpoint. With a codec it sends
// `{"token": ...}` bodies and decodes encrypted responses, renewing an
// expired response token once. Without one it sends the envelope in clear.
type Forwarder struct {
	endpoint   string
	client     *http.Client
	codec      *token.Codec
	ladder     *token.Ladder
	credential string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithCodec enables encrypted transport.
func WithCodec(codec *token.Codec) Option {
	return func(f *Forwarder) { f.codec = codec }
}

// WithCredential attaches an API credential delivered through the ladder.
func WithCredential(credential string, ladder *token.Ladder) Option {
	return func(f *Forwarder) {
		f.credential = credential
		f.ladder = ladder
	}
}

// WithHTTPClient overrides the HTTP client (default 10s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) { f.metrics = m }
}

// New builds a forwarder for the given endpoint.
func New(endpoint string, logger *slog.Logger, opts ...Option) *Forwarder {
	f := &Forwarder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		tracer:   otel.Tracer("forwarder"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Send delivers one event and returns the decoded response. Rejections and
// transport failures come back as errors; the caller decides what to do with
// a direct send, while queued sends are fire-and-forget.
func (f *Forwarder) Send(ctx context.Context, name string, params map[string]any) (Outcome, error) {
	ctx, span := f.tracer.Start(ctx, "forwarder.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("event.name", name),
			attribute.Bool("transport.encrypted", f.codec != nil),
		))
	defer span.End()

	start := time.Now()
	outcome, err := f.send(ctx, name, params)
	f.metrics.ObserveForward(outcome.Result, time.Since(start))

	span.SetAttributes(attribute.String("send.result", outcome.Result))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

// DeliverQueued adapts Send for a queue flush: failures are logged, never
// retried or re-queued.
func (f *Forwarder) DeliverQueued(ctx context.Context, event queue.Event) {
	if _, err := f.Send(ctx, event.Name, event.Params); err != nil {
		f.logger.Warn("queued event delivery failed",
			slog.String("event", event.Name), slog.Any("error", err))
	}
}

func (f *Forwarder) send(ctx context.Context, name string, params map[string]any) (Outcome, error) {
	body, err := f.buildBody(name, params)
	if err != nil {
		return Outcome{Result: ResultFailed}, err
	}

	respBody, status, err := f.post(ctx, body)
	if err != nil {
		return Outcome{Result: ResultFailed},
			domainerrors.Wrap(domainerrors.CodeUnavailable, "collection endpoint unreachable", err)
	}
	if status < 200 || status >= 300 {
		return Outcome{Result: ResultRejected},
			domainerrors.New(domainerrors.CodeBadRequest, fmt.Sprintf("collection endpoint returned %d", status))
	}

	decoded, err := f.decodeResponse(ctx, respBody)
	if err != nil {
		f.logger.Warn("response decode failed", slog.String("event", name), slog.Any("error", err))
		// The event landed; an opaque response does not fail the send.
		return Outcome{Result: ResultSent}, nil
	}
	return Outcome{Result: ResultSent, Body: decoded}, nil
}

func (f *Forwarder) buildBody(name string, params map[string]any) ([]byte, error) {
	envelope := Envelope{Name: name, Params: params}
	if f.credential != "" && f.ladder != nil {
		encoded, err := f.ladder.Deliver(f.credential)
		if err != nil {
			return nil, fmt.Errorf("credential delivery: %w", err)
		}
		envelope.APICredential = encoded.Value
		envelope.CredentialEncoding = encoded.Rung
	}

	plaintext, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	if f.codec == nil {
		return plaintext, nil
	}

	tok, err := f.codec.Encode(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt envelope: %w", err)
	}
	return json.Marshal(map[string]string{"token": tok})
}

func (f *Forwarder) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// decodeResponse unpacks the endpoint's reply. An encrypted reply arrives as
// `{"token": ...}` and is opened with the codec; an expired or re-signed
// response token is renewed once by replaying the fetch.
func (f *Forwarder) decodeResponse(ctx context.Context, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if wrapped.Token == "" || f.codec == nil {
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return out, nil
	}

	plaintext, err := f.codec.DecodeWithRenewal(ctx, wrapped.Token, f.renewResponseToken)
	if err != nil {
		return nil, fmt.Errorf("open response token: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, fmt.Errorf("parse response plaintext: %w", err)
	}
	return out, nil
}

// renewResponseToken asks the endpoint for a fresh response token.
func (f *Forwarder) renewResponseToken(ctx context.Context) (string, error) {
	body, status, err := f.post(ctx, []byte(`{"renew":true}`))
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("renewal rejected with %d", status)
	}
	var wrapped struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return "", fmt.Errorf("parse renewal response: %w", err)
	}
	if wrapped.Token == "" {
		return "", fmt.Errorf("renewal response carried no token")
	}
	return wrapped.Token, nil
}
