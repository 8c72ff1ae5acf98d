package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	id "profilereg/pkg/domain"
	audit "profilereg/pkg/platform/audit"
	"profilereg/pkg/platform/audit/worker"
	"profilereg/pkg/requestcontext"
)

var (
	ErrBufferFull      = errors.New("audit buffer full")
	ErrClosed          = errors.New("audit publisher closed")
	ErrListUnsupported = errors.New("audit store cannot list events")
)

// Publisher stamps events with request metadata and hands them to a store,
// either inline (default) or through a bounded buffer drained by a worker.
type Publisher struct {
	store      audit.Store
	logger     *slog.Logger
	bufferSize int

	mu        sync.RWMutex
	closed    bool
	inbox     chan audit.Event
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit publishes event. In async mode a full buffer drops the event and
// returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"kind", string(event.Kind),
			"account", event.Account.String(),
		)
		return ErrBufferFull
	}
}

// List returns events recorded for account when the store supports listing.
func (p *Publisher) List(ctx context.Context, account id.AccountID) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.ListByAccount(ctx, account)
}

// Close stops accepting events and, in async mode, waits for the buffer to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.inbox != nil {
			close(p.inbox)
		}
		p.mu.Unlock()
		if p.done != nil {
			<-p.done
		}
	})
}
