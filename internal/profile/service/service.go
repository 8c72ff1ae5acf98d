package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"profilereg/internal/platform/metrics"
	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/audit"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/platform/sentinel"
	"profilereg/pkg/requestcontext"
)

// Operation names used for spans, metrics and logs.
const (
	OpSubmit      = "submit_profile"
	OpWithdraw    = "withdraw_profile"
	OpForceRemove = "force_remove"
	OpForceSet    = "force_set_profile"
	OpProfile     = "profile"
)

// Store is the record store: one entry per account, no validation and no
// ledger effects. Absence is reported through the bool, not an error.
type Store interface {
	Get(ctx context.Context, account id.AccountID) (*models.Entry, bool, error)
	Put(ctx context.Context, account id.AccountID, entry *models.Entry) error
	Remove(ctx context.Context, account id.AccountID) (*models.Entry, bool, error)
}

// Ledger holds deposits. Reserve is the only call that can fail; Unreserve
// and SlashReserved report what they actually moved, which may be less than
// asked for.
type Ledger interface {
	Reserve(ctx context.Context, who id.AccountID, amount id.Balance) error
	Unreserve(ctx context.Context, who id.AccountID, amount id.Balance) id.Balance
	SlashReserved(ctx context.Context, who id.AccountID, amount id.Balance) (id.Forfeited, id.Balance)
}

// SlashSink receives value forfeited by administrative removal.
type SlashSink interface {
	OnForfeited(ctx context.Context, value id.Forfeited)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config is fixed at construction.
type Config struct {
	MaxLength    int
	DepositValue id.Balance
	// ReserveOnForceSet makes a privileged set that creates an entry reserve
	// DepositValue like an owner submission. Off by default: such entries
	// carry a zero deposit.
	ReserveOnForceSet bool
}

func (c Config) Validate() error {
	if c.MaxLength <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max length must be positive")
	}
	return nil
}

// Service is the deposit-backed registry. Every mutation of the record store
// goes through it so that each stored entry is matched by a reservation of
// exactly its deposit.
type Service struct {
	cfg            Config
	store          Store
	tx             StoreTx
	ledger         Ledger
	sink           SlashSink
	authorizer     origin.Authorizer
	resolver       origin.Resolver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx replaces the default in-process sharded transaction.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service. The store passed here serves reads; writes go
// through the StoreTx, which defaults to a sharded lock around store.
func New(cfg Config, store Store, ledger Ledger, sink SlashSink, authorizer origin.Authorizer, resolver origin.Resolver, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || ledger == nil || sink == nil || authorizer == nil || resolver == nil {
		return nil, errors.New("profile service: store, ledger, sink, authorizer and resolver are required")
	}
	s := &Service{
		cfg:        cfg,
		store:      store,
		ledger:     ledger,
		sink:       sink,
		authorizer: authorizer,
		resolver:   resolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(store, DefaultTxTimeout)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("profilereg/internal/profile/service")
	}
	return s, nil
}

// Config returns the immutable registry configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// SubmitProfile stores or replaces the caller's profile. A first submission
// reserves the configured deposit; a resubmission keeps the deposit held for
// the existing entry and makes no ledger call.
func (s *Service) SubmitProfile(ctx context.Context, o origin.Origin, name []byte, age uint8, title []byte) (_ *models.Entry, err error) {
	ctx, done := s.begin(ctx, OpSubmit)
	defer func() { done(err) }()

	who, err := origin.Authenticate(o)
	if err != nil {
		return nil, err
	}
	profile, err := models.NewProfile(name, age, title, s.cfg.MaxLength)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account", who.String()))

	return s.write(ctx, who, profile, func(st models.State) models.Transition {
		return st.Submit(s.cfg.DepositValue)
	}, func(ctx context.Context, t models.Transition) {
		if t.From.Kind == models.StatePresent {
			s.logger.InfoContext(ctx, "profile updated", "account", who, "request_id", requestcontext.RequestID(ctx))
			s.incUpdated()
		} else {
			s.logger.InfoContext(ctx, "profile added", "account", who, "deposit", t.Amount, "request_id", requestcontext.RequestID(ctx))
			s.addReserved(t.Amount)
		}
		s.incAdded()
		s.emitPlan(ctx, who, t, t.Amount, o.Actor())
	})
}

// WithdrawProfile deletes the caller's entry and releases its deposit.
func (s *Service) WithdrawProfile(ctx context.Context, o origin.Origin) (err error) {
	ctx, done := s.begin(ctx, OpWithdraw)
	defer func() { done(err) }()

	who, err := origin.Authenticate(o)
	if err != nil {
		return err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account", who.String()))

	return s.remove(ctx, who, models.State.Withdraw, func(ctx context.Context, t models.Transition) func(context.Context) {
		released := s.ledger.Unreserve(ctx, who, t.Amount)
		if released != t.Amount {
			s.logger.WarnContext(ctx, "deposit only partially released",
				"account", who,
				"requested", t.Amount,
				"realized", released,
			)
		}
		s.logger.InfoContext(ctx, "profile withdrawn", "account", who, "released", released, "request_id", requestcontext.RequestID(ctx))
		s.addUnreserved(released)
		s.incDeleted(metrics.ReasonWithdrawn)
		s.emitPlan(ctx, who, t, released, o.Actor())

		return func(ctx context.Context) {
			if err := s.ledger.Reserve(ctx, who, released); err != nil {
				s.logger.ErrorContext(ctx, "failed to restore deposit after aborted withdraw",
					"account", who,
					"amount", released,
					"error", err,
				)
			}
		}
	})
}

// ForceRemove deletes target's entry on behalf of a privileged origin. The
// deposit is slashed and handed to the slash sink.
func (s *Service) ForceRemove(ctx context.Context, o origin.Origin, lookup string) (err error) {
	ctx, done := s.begin(ctx, OpForceRemove)
	defer func() { done(err) }()

	if err := s.authorizer.AuthorizePrivileged(ctx, o); err != nil {
		return err
	}
	target, err := s.resolver.Resolve(ctx, lookup)
	if err != nil {
		return err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account", target.String()))

	return s.remove(ctx, target, models.State.ForceRemove, func(ctx context.Context, t models.Transition) func(context.Context) {
		forfeited, realized := s.ledger.SlashReserved(ctx, target, t.Amount)
		if realized != t.Amount {
			s.logger.WarnContext(ctx, "deposit only partially slashed",
				"account", target,
				"requested", t.Amount,
				"realized", realized,
			)
		}
		s.sink.OnForfeited(ctx, forfeited)
		s.logger.InfoContext(ctx, "profile force removed",
			"account", target,
			"slashed", realized,
			"actor", o.Actor(),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.addSlashed(realized)
		s.incDeleted(metrics.ReasonForceRemoved)
		s.emitPlan(ctx, target, t, realized, o.Actor())
		// Forfeited value already belongs to the sink.
		return nil
	})
}

// ForceSetProfile writes target's profile on behalf of a privileged origin,
// bypassing the deposit requirement. An existing deposit is kept as is. The
// resolved target is returned with the stored entry.
func (s *Service) ForceSetProfile(ctx context.Context, o origin.Origin, lookup string, name []byte, age uint8, title []byte) (_ id.AccountID, _ *models.Entry, err error) {
	ctx, done := s.begin(ctx, OpForceSet)
	defer func() { done(err) }()

	if err := s.authorizer.AuthorizePrivileged(ctx, o); err != nil {
		return id.AccountID{}, nil, err
	}
	profile, err := models.NewProfile(name, age, title, s.cfg.MaxLength)
	if err != nil {
		return id.AccountID{}, nil, err
	}
	target, err := s.resolver.Resolve(ctx, lookup)
	if err != nil {
		return id.AccountID{}, nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("account", target.String()))

	entry, err := s.write(ctx, target, profile, func(st models.State) models.Transition {
		return st.ForceSet(s.cfg.DepositValue, s.cfg.ReserveOnForceSet)
	}, func(ctx context.Context, t models.Transition) {
		s.logger.InfoContext(ctx, "profile force set",
			"account", target,
			"deposit", t.To.Deposit,
			"actor", o.Actor(),
			"request_id", requestcontext.RequestID(ctx),
		)
		if t.Ledger == models.LedgerReserve {
			s.addReserved(t.Amount)
		}
		s.emitPlan(ctx, target, t, t.Amount, o.Actor())
	})
	if err != nil {
		return id.AccountID{}, nil, err
	}
	return target, entry, nil
}

// Profile returns the resolved account for lookup and its stored entry.
// Reads take no lock.
func (s *Service) Profile(ctx context.Context, lookup string) (_ id.AccountID, _ *models.Entry, err error) {
	ctx, done := s.begin(ctx, OpProfile)
	defer func() { done(err) }()

	who, err := s.resolver.Resolve(ctx, lookup)
	if err != nil {
		return id.AccountID{}, nil, err
	}
	entry, found, err := s.store.Get(ctx, who)
	if err != nil {
		return id.AccountID{}, nil, internal(err, "failed to load profile")
	}
	if !found {
		return id.AccountID{}, nil, dErrors.New(dErrors.CodeNotRegistered, "account has no registered profile")
	}
	return who, entry, nil
}

// write runs an insert-or-overwrite transition for who. The only fallible
// ledger call, the reservation, happens before the store write and is undone
// if the write or the commit fails. settle runs under the account lock once
// the entry is stored, so no other operation on who can interleave with the
// effects it records.
func (s *Service) write(ctx context.Context, who id.AccountID, profile models.Profile, plan func(models.State) models.Transition, settle func(context.Context, models.Transition)) (*models.Entry, error) {
	var (
		t        models.Transition
		entry    *models.Entry
		reserved bool
		settled  bool
	)
	err := s.tx.RunInTx(ctx, who, func(ctx context.Context, store Store) error {
		existing, _, err := store.Get(ctx, who)
		if err != nil {
			return internal(err, "failed to load profile")
		}
		t = plan(models.StateOf(existing))

		if t.Ledger == models.LedgerReserve {
			if err := s.ledger.Reserve(ctx, who, t.Amount); err != nil {
				return err
			}
			reserved = true
		}

		entry = &models.Entry{Profile: profile, Deposit: t.To.Deposit}
		if err := store.Put(ctx, who, entry); err != nil {
			return internal(err, "failed to store profile")
		}
		settle(ctx, t)
		settled = true
		return nil
	})
	if err != nil {
		if reserved {
			released := s.ledger.Unreserve(context.WithoutCancel(ctx), who, t.Amount)
			s.logger.WarnContext(ctx, "reservation rolled back after failed write",
				"account", who,
				"amount", t.Amount,
				"released", released,
				"error", err,
			)
		}
		if settled {
			s.logger.ErrorContext(ctx, "write effects recorded but transaction did not commit", "account", who, "error", err)
		}
		return nil, err
	}
	return entry, nil
}

// remove runs a deleting transition for who. The ledger side runs in settle,
// under the account lock and only after the store delete succeeded, so a
// failed delete leaves the reservation untouched. If the transaction still
// fails to commit, the undo settle returned is applied.
func (s *Service) remove(ctx context.Context, who id.AccountID, plan func(models.State) (models.Transition, error), settle func(context.Context, models.Transition) func(context.Context)) error {
	var (
		undo    func(context.Context)
		settled bool
	)
	err := s.tx.RunInTx(ctx, who, func(ctx context.Context, store Store) error {
		removed, _, err := store.Remove(ctx, who)
		if err != nil {
			return internal(err, "failed to remove profile")
		}
		t, err := plan(models.StateOf(removed))
		if err != nil {
			return err
		}
		undo = settle(ctx, t)
		settled = true
		return nil
	})
	if err != nil && settled {
		s.logger.ErrorContext(ctx, "removal effects recorded but transaction did not commit", "account", who, "error", err)
		if undo != nil {
			undo(context.WithoutCancel(ctx))
		}
	}
	return err
}

// emitPlan publishes the transition's events in order. Ledger events carry
// amount, the value the ledger actually moved. The transition has already
// happened by the time this runs, so a caller going away must not drop its
// events.
func (s *Service) emitPlan(ctx context.Context, who id.AccountID, t models.Transition, amount id.Balance, actor string) {
	if s.auditPublisher == nil {
		return
	}
	emitCtx := context.WithoutCancel(ctx)
	now := requestcontext.Now(ctx)
	for _, kind := range t.Events {
		event := audit.Event{
			Kind:      kind,
			Account:   who,
			Timestamp: now,
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   actor,
		}
		if kind.CarriesAmount() {
			event.Amount = amount
		}
		if err := s.auditPublisher.Emit(emitCtx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish registry event",
				"kind", kind,
				"account", who,
				"error", err,
			)
		}
	}
}

// begin opens the span for op and returns a completion func that records
// duration, error code and span status.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "profile."+op)
	return ctx, func(err error) {
		if err != nil {
			code := dErrors.CodeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(code))
			if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
				s.logger.ErrorContext(ctx, "registry operation failed", "operation", op, "error", err)
			} else {
				s.logger.WarnContext(ctx, "registry operation rejected", "operation", op, "code", code)
			}
			if s.metrics != nil {
				s.metrics.IncrementOperationError(op, string(code))
			}
		}
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, start)
		}
		span.End()
	}
}

// internal keeps coded errors and translates store sentinels; anything else
// is an internal error.
func internal(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) incAdded() {
	if s.metrics != nil {
		s.metrics.ProfilesAdded.Inc()
	}
}

func (s *Service) incUpdated() {
	if s.metrics != nil {
		s.metrics.ProfilesUpdated.Inc()
	}
}

func (s *Service) incDeleted(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementProfileDeleted(reason)
	}
}

func (s *Service) addReserved(amount id.Balance) {
	if s.metrics != nil {
		s.metrics.DepositReserved.Add(float64(amount))
	}
}

func (s *Service) addUnreserved(amount id.Balance) {
	if s.metrics != nil {
		s.metrics.DepositUnreserved.Add(float64(amount))
	}
}

func (s *Service) addSlashed(amount id.Balance) {
	if s.metrics != nil {
		s.metrics.DepositSlashed.Add(float64(amount))
	}
}
