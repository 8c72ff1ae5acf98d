package worker

import (
	"context"
	"log/slog"

	audit "profilereg/pkg/platform/audit"
)

// Worker consumes events from a channel and appends them to a store. A failed
// append is logged and the worker keeps going; events are informational and a
// broken sink must not stall registry operations.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until it is closed or ctx is cancelled. A closed inbox
// returns nil after every queued event has been appended.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to append event",
					"kind", string(event.Kind),
					"account", event.Account.String(),
					"error", err,
				)
			}
		}
	}
}
