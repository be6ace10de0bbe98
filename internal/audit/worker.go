package audit

import (
	"context"
	"log/slog"
)

// Worker drains the trail's inbox into the store and, when configured, an
// external sink. Failures on either leg are logged and skipped so a flaky
// dependency never stalls the drain.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Entry
	logger *slog.Logger
}

// NewWorker wires the consume side. sink may be nil.
func NewWorker(store Store, sink Sink, inbox <-chan Entry, logger *slog.Logger) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

// Run consumes until ctx is cancelled, then drains whatever is already
// buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case entry := <-w.inbox:
			w.handle(ctx, entry)
		}
	}
}

func (w *Worker) drain() {
	// Store writes use a fresh context; the run context is already dead.
	ctx := context.Background()
	for {
		select {
		case entry := <-w.inbox:
			w.handle(ctx, entry)
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, entry Entry) {
	if err := w.store.Append(ctx, entry); err != nil {
		w.logger.Warn("audit append failed",
			slog.String("action", string(entry.Action)), slog.Any("error", err))
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(ctx, entry); err != nil {
		w.logger.Warn("audit publish failed",
			slog.String("action", string(entry.Action)), slog.Any("error", err))
	}
}
