// Package pipeline assembles the consent machine, queue, dedup ledger and
// forwarder into the producer-facing delivery surface.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/audit"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/consent"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/dedup"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/forwarder"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// Sender is the outbound transport leg.
type Sender interface {
	Send(ctx context.Context, name string, params map[string]any) (forwarder.Outcome, error)
	DeliverQueued(ctx context.Context, event queue.Event)
}

// Disposition says what happened to a submitted event.
type Disposition string

const (
	DispositionSent     Disposition = "sent"
	DispositionQueued   Disposition = "queued"
	DispositionRejected Disposition = "rejected"
)

// Submission is one inbound event from a producer.
type Submission struct {
	Name     string
	Params   map[string]any
	Page     *queue.PageContext
	Enriched bool
}

// Pipeline is the single assembly handed to producers. Events submitted
// while consent is pending are queued; once a decision lands, the queue is
// flushed exactly once and later arrivals go straight to transport with
// consent metadata attached.
type Pipeline struct {
	machine *consent.Machine
	queue   *queue.Queue
	ledger  *dedup.Ledger
	sender  Sender
	trail   *audit.Trail
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTrail attaches the audit trail.
func WithTrail(trail *audit.Trail) Option {
	return func(p *Pipeline) { p.trail = trail }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New assembles the pipeline and subscribes the flush trigger to the consent
// machine. The queue's own single-shot guard keeps a consent flip from
// replaying delivered events.
func New(machine *consent.Machine, q *queue.Queue, ledger *dedup.Ledger, sender Sender, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		machine: machine,
		queue:   q,
		ledger:  ledger,
		sender:  sender,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	machine.Subscribe(p.onDecision)
	return p
}

// ShouldSend reports whether an event may leave immediately. False means the
// producer should Submit and let the queue hold it.
func (p *Pipeline) ShouldSend(string, map[string]any) bool {
	return p.machine.Resolved()
}

// Submit routes one event: direct transport when consent is resolved, queue
// when it is still pending. Direct sends carry the decision's consent
// metadata in their params.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (Disposition, error) {
	decision := p.machine.Current()
	if !decision.Resolved() {
		p.queue.Enqueue(ctx, queue.Event{
			Name:     sub.Name,
			Params:   sub.Params,
			Page:     sub.Page,
			Enriched: sub.Enriched,
		})
		p.countReceived("queued")
		p.record(audit.Entry{Action: audit.ActionEventQueued, EventName: sub.Name})
		return DispositionQueued, nil
	}

	p.countReceived("direct")
	_, err := p.sender.Send(ctx, sub.Name, withConsentParams(sub.Params, decision))
	if err != nil {
		p.record(audit.Entry{
			Action:    audit.ActionEventSuppressed,
			EventName: sub.Name,
			Consent:   string(decision.Status),
			Reason:    err.Error(),
		})
		return DispositionRejected, err
	}
	p.record(audit.Entry{
		Action:    audit.ActionEventSent,
		EventName: sub.Name,
		Consent:   string(decision.Status),
	})
	return DispositionSent, nil
}

// TrackSafely guards a conversion submission behind the dedup ledger. The
// send only runs when no live record exists for (subjectID, channel); a
// successful send writes the record.
func (p *Pipeline) TrackSafely(ctx context.Context, subjectID, channel string, sub Submission) (bool, error) {
	sent, err := p.ledger.TrackSafely(ctx, subjectID, channel, map[string]string{"event": sub.Name},
		func(ctx context.Context) error {
			disposition, err := p.Submit(ctx, sub)
			if err != nil {
				return err
			}
			if disposition == DispositionQueued {
				// Queued counts as handled; the dedup record must wait for
				// the actual send, so report failure to skip it.
				return sentinel.ErrInvalidState
			}
			return nil
		})
	if errors.Is(err, sentinel.ErrInvalidState) {
		// The event was queued rather than sent.
		return true, nil
	}
	if !sent && err == nil {
		p.record(audit.Entry{
			Action:    audit.ActionEventSuppressed,
			ClientID:  subjectID,
			Channel:   channel,
			EventName: sub.Name,
			Reason:    "dedup window",
		})
	}
	return sent, err
}

func (p *Pipeline) record(entry audit.Entry) {
	if p.trail != nil {
		p.trail.Record(entry)
	}
}

func (p *Pipeline) countReceived(outcome string) {
	if p.metrics != nil {
		p.metrics.EventsReceived.WithLabelValues(outcome).Inc()
	}
}

// onDecision audits the resolution and flushes the queue through transport.
func (p *Pipeline) onDecision(decision consent.Decision) {
	p.record(audit.Entry{
		Action:  audit.ActionConsentResolved,
		Consent: string(decision.Status),
		Reason:  string(decision.Reason),
		Detail:  map[string]string{"source": decision.Source},
	})

	ctx := context.Background()
	delivered, err := p.queue.Flush(ctx, func(ctx context.Context, event queue.Event) {
		event.Params = withConsentParams(event.Params, decision)
		p.sender.DeliverQueued(ctx, event)
	})
	if errors.Is(err, sentinel.ErrAlreadyFlushed) {
		p.logger.Debug("queue already flushed, skipping",
			slog.String("status", string(decision.Status)))
		return
	}
	if err != nil {
		p.logger.Warn("queue flush failed", slog.Any("error", err))
		return
	}

	p.record(audit.Entry{
		Action:  audit.ActionQueueFlushed,
		Consent: string(decision.Status),
		Detail:  map[string]string{"delivered": strconv.Itoa(delivered)},
	})
}

// withConsentParams copies params and stamps the consent metadata the
// collection endpoint expects alongside every post-resolution send.
func withConsentParams(params map[string]any, decision consent.Decision) map[string]any {
	out := make(map[string]any, len(params)+3+len(decision.Categories))
	for k, v := range params {
		out[k] = v
	}
	out["consent_status"] = string(decision.Status)
	if decision.Reason != "" {
		out["consent_reason"] = string(decision.Reason)
	}
	for category, allowed := range decision.Categories {
		out[string(category)] = categoryValue(allowed)
	}
	return out
}

func categoryValue(allowed bool) string {
	if allowed {
		return "granted"
	}
	return "denied"
}
