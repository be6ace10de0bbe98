package consent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	domainerrors "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/domain-errors"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/platform/sentinel"
)

// Listener observes every accepted decision, including flips. Listeners run
// outside the machine lock and must be fast or dispatch their own goroutines.
type Listener func(Decision)

// Machine arbitrates between the concurrent resolution paths (explicit
// action, platform callback, passive signal, timeout) and holds the single
// authoritative Decision. First writer wins; later writers are either
// idempotent repeats or accepted flips.
type Machine struct {
	store  Store
	timers *TimerOwner
	clock  func() time.Time
	logger *slog.Logger

	timeout       time.Duration
	timeoutStatus Status

	mu        sync.Mutex
	current   Decision
	processed bool
	listeners []Listener
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithTimeout arms an automatic resolution after d with the given terminal
// status. A zero duration disables the timeout path.
func WithTimeout(d time.Duration, status Status) MachineOption {
	return func(m *Machine) {
		m.timeout = d
		m.timeoutStatus = status
	}
}

// WithMachineClock sets the clock function for testability.
func WithMachineClock(clock func() time.Time) MachineOption {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMachine builds a pending machine backed by the given store.
func NewMachine(store Store, logger *slog.Logger, opts ...MachineOption) *Machine {
	m := &Machine{
		store:         store,
		timers:        NewTimerOwner(),
		clock:         time.Now,
		logger:        logger,
		timeoutStatus: StatusDenied,
		current:       Decision{Status: StatusPending},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Subscribe registers a listener for accepted decisions. Subscriptions made
// after resolution immediately see the current decision so late wiring never
// misses the flush trigger.
func (m *Machine) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, listener)
	current := m.current
	notify := m.processed
	m.mu.Unlock()
	if notify {
		listener(current)
	}
}

// Current returns the authoritative decision.
func (m *Machine) Current() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Resolved reports whether a terminal decision exists.
func (m *Machine) Resolved() bool {
	return m.Current().Resolved()
}

// Start restores a persisted decision and, failing that, arms the timeout
// timer. A restored terminal decision is republished to listeners so the
// delivery side can flush whatever the queue restored alongside it.
func (m *Machine) Start(ctx context.Context) error {
	decision, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		// No prior decision, stay pending.
	case err != nil:
		m.logger.Warn("consent restore failed, starting pending", slog.Any("error", err))
	case decision.Resolved():
		m.adopt(decision)
		m.logger.Info("consent restored",
			slog.String("status", string(decision.Status)),
			slog.String("reason", string(decision.Reason)))
		return nil
	}

	if m.timeout > 0 {
		m.timers.Schedule(m.timeout, func() {
			if err := m.Resolve(context.Background(), m.timeoutStatus, ReasonAutomaticDelay, "timeout"); err != nil {
				m.logger.Warn("consent timeout resolution failed", slog.Any("error", err))
			}
		})
	}
	return nil
}

// ScheduleTimer arms an auxiliary timer owned by the machine. It is cancelled
// together with the timeout timer when any resolution lands.
func (m *Machine) ScheduleTimer(d time.Duration, fn func()) {
	m.timers.Schedule(d, fn)
}

// Resolve moves the machine to a terminal status. Repeating the current
// status is an idempotent no-op: nothing is re-persisted and no listener
// fires again. An opposite flip is accepted, persisted and republished; the
// delivery queue's own single-shot guard keeps already-flushed events from
// replaying.
func (m *Machine) Resolve(ctx context.Context, status Status, reason Reason, source string) error {
	if status != StatusGranted && status != StatusDenied {
		return domainerrors.New(domainerrors.CodeInvalidInput, "consent resolution requires a terminal status")
	}

	m.mu.Lock()
	if m.processed && m.current.Status == status {
		m.mu.Unlock()
		m.logger.Debug("consent already resolved, ignoring repeat",
			slog.String("status", string(status)), slog.String("source", source))
		return nil
	}
	flip := m.current.Resolved() && m.current.Status != status
	if flip {
		m.processed = false
	}
	decision := NewDecision(status, reason, source, m.clock())
	m.current = decision
	m.processed = true
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	m.timers.CancelAll()

	if err := m.store.Save(ctx, decision); err != nil {
		// A lost persist costs restart continuity, not the live decision.
		m.logger.Warn("consent persist failed", slog.Any("error", err))
	}

	m.logger.Info("consent resolved",
		slog.String("status", string(status)),
		slog.String("reason", string(reason)),
		slog.String("source", source),
		slog.Bool("flip", flip))

	for _, listener := range listeners {
		listener(decision)
	}
	return nil
}

// UpdateCategories replaces the per-category split on an already-resolved
// decision, as supplied by a consent platform granting some purposes and
// denying others. The overall status follows analytics storage because that
// is the category gating event delivery.
func (m *Machine) UpdateCategories(ctx context.Context, categories map[Category]bool, source string) error {
	status := StatusDenied
	if categories[CategoryAnalyticsStorage] {
		status = StatusGranted
	}
	if err := m.Resolve(ctx, status, ReasonPlatformCallback, source); err != nil {
		return err
	}

	// Decisions already handed to listeners share their Categories map, so
	// the patch goes into a fresh map on a fresh Decision.
	m.mu.Lock()
	decision := m.current
	merged := make(map[Category]bool, len(decision.Categories)+len(categories))
	for category, allowed := range decision.Categories {
		merged[category] = allowed
	}
	for category, allowed := range categories {
		merged[category] = allowed
	}
	decision.Categories = merged
	m.current = decision
	m.mu.Unlock()

	if err := m.store.Save(ctx, decision); err != nil {
		m.logger.Warn("consent persist failed", slog.Any("error", err))
	}
	return nil
}

// adopt installs a restored decision without re-persisting it.
func (m *Machine) adopt(decision Decision) {
	m.mu.Lock()
	m.current = decision
	m.processed = true
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	m.timers.CancelAll()
	for _, listener := range listeners {
		listener(decision)
	}
}
