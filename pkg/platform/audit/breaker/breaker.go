// Package breaker guards a remote event store with a circuit breaker so an
// unreachable broker does not add its timeout to every registry call.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "profilereg/pkg/platform/audit"
)

// ErrOpen is returned while the circuit is open and appends are skipped.
var ErrOpen = errors.New("event stream circuit open")

const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// Metrics tracks the guarded stream.
type Metrics struct {
	Dropped  prometheus.Counter
	Failures prometheus.Counter
	Open     prometheus.Gauge
}

// NewMetrics registers the guard metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_event_stream_dropped_total",
			Help: "Events skipped while the stream circuit was open",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "registry_event_stream_failures_total",
			Help: "Failed appends to the event stream",
		}),
		Open: f.NewGauge(prometheus.GaugeOpts{
			Name: "registry_event_stream_circuit_open",
			Help: "1 while the stream circuit is open",
		}),
	}
}

// Store wraps an audit.Store. After threshold consecutive failures the
// circuit opens for cooldown; the first append after that is a probe.
type Store struct {
	next    audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	open      bool
	openUntil time.Time
}

type Option func(*Store)

func WithThreshold(n int) Option {
	return func(s *Store) { s.threshold = n }
}

func WithCooldown(d time.Duration) Option {
	return func(s *Store) { s.cooldown = d }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(next audit.Store, opts ...Option) *Store {
	s := &Store{
		next:      next,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.threshold <= 0 {
		s.threshold = defaultThreshold
	}
	if s.cooldown <= 0 {
		s.cooldown = defaultCooldown
	}
	return s
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if !s.allow() {
		if s.metrics != nil {
			s.metrics.Dropped.Inc()
		}
		return ErrOpen
	}
	if err := s.next.Append(ctx, event); err != nil {
		s.recordFailure(ctx, err)
		return err
	}
	s.recordSuccess(ctx)
	return nil
}

// IsOpen reports whether appends are currently being skipped.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && s.now().Before(s.openUntil)
}

func (s *Store) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return true
	}
	if s.now().Before(s.openUntil) {
		return false
	}
	// half-open: let one probe through and hold the rest off for another cooldown
	s.openUntil = s.now().Add(s.cooldown)
	return true
}

func (s *Store) recordFailure(ctx context.Context, err error) {
	s.mu.Lock()
	s.failures++
	opened := false
	if s.failures >= s.threshold {
		opened = !s.open
		s.open = true
		s.openUntil = s.now().Add(s.cooldown)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Failures.Inc()
		if opened {
			s.metrics.Open.Set(1)
		}
	}
	if opened {
		s.logger.WarnContext(ctx, "event stream circuit opened", "error", err, "cooldown", s.cooldown)
	}
}

func (s *Store) recordSuccess(ctx context.Context) {
	s.mu.Lock()
	closed := s.open
	s.failures = 0
	s.open = false
	s.mu.Unlock()

	if closed {
		if s.metrics != nil {
			s.metrics.Open.Set(0)
		}
		s.logger.InfoContext(ctx, "event stream circuit closed")
	}
}
