package audit

import (
	"context"
	"errors"
	"time"

	id "profilereg/pkg/domain"
)

// EventCategory groups events by what they describe so sinks can route them.
type EventCategory string

const (
	// CategoryRegistry covers profile lifecycle changes.
	CategoryRegistry EventCategory = "registry"
	// CategoryLedger covers value moved on the ledger on the registry's behalf.
	CategoryLedger EventCategory = "ledger"
)

// EventKind names one observable registry transition step.
type EventKind string

const (
	EventProfileAdded    EventKind = "profile_added"
	EventProfileUpdated  EventKind = "profile_updated"
	EventProfileDeleted  EventKind = "profile_deleted"
	EventValueReserved   EventKind = "value_reserved"
	EventValueUnreserved EventKind = "value_unreserved"
	EventSlashedBalance  EventKind = "slashed_balance"
)

var eventCategories = map[EventKind]EventCategory{
	EventProfileAdded:    CategoryRegistry,
	EventProfileUpdated:  CategoryRegistry,
	EventProfileDeleted:  CategoryRegistry,
	EventValueReserved:   CategoryLedger,
	EventValueUnreserved: CategoryLedger,
	EventSlashedBalance:  CategoryLedger,
}

// Category returns the category for k. Unknown kinds default to CategoryRegistry.
func (k EventKind) Category() EventCategory {
	if cat, ok := eventCategories[k]; ok {
		return cat
	}
	return CategoryRegistry
}

// CarriesAmount reports whether events of kind k have a meaningful Amount.
func (k EventKind) CarriesAmount() bool {
	return k.Category() == CategoryLedger
}

// Event is emitted by the registry after an operation commits. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Kind      EventKind
	Account   id.AccountID
	Amount    id.Balance
	Timestamp time.Time
	RequestID string
	// ActorID is set for privileged operations; it names the admin origin.
	ActorID string
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can answer per-account history.
type Lister interface {
	ListByAccount(ctx context.Context, account id.AccountID) ([]Event, error)
}

// Fanout appends each event to every store in order. All stores are attempted;
// the joined error reports every failure.
func Fanout(stores ...Store) Store {
	return fanout(stores)
}

type fanout []Store

func (f fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListByAccount delegates to the first store that can list.
func (f fanout) ListByAccount(ctx context.Context, account id.AccountID) ([]Event, error) {
	for _, s := range f {
		if l, ok := s.(Lister); ok {
			return l.ListByAccount(ctx, account)
		}
	}
	return nil, nil
}
