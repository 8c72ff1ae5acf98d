package models

import (
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	audit "profilereg/pkg/platform/audit"
)

// StateKind is the closed set of per-account registry states.
type StateKind uint8

const (
	StateAbsent StateKind = iota
	StatePresent
)

func (k StateKind) String() string {
	if k == StatePresent {
		return "present"
	}
	return "absent"
}

// State is an account's registry state. Deposit is only meaningful when
// Present; a present state with zero deposit is reachable only through a
// privileged set.
type State struct {
	Kind    StateKind
	Deposit id.Balance
}

// Absent is the state of an account with no entry.
func Absent() State { return State{Kind: StateAbsent} }

// Present is the state of an account whose entry holds deposit.
func Present(deposit id.Balance) State { return State{Kind: StatePresent, Deposit: deposit} }

// StateOf derives the state from a stored entry; nil means absent.
func StateOf(entry *Entry) State {
	if entry == nil {
		return Absent()
	}
	return Present(entry.Deposit)
}

// LedgerAction is the single ledger call a transition makes.
type LedgerAction uint8

const (
	LedgerNone LedgerAction = iota
	LedgerReserve
	LedgerUnreserve
	LedgerSlash
)

func (a LedgerAction) String() string {
	switch a {
	case LedgerReserve:
		return "reserve"
	case LedgerUnreserve:
		return "unreserve"
	case LedgerSlash:
		return "slash"
	default:
		return "none"
	}
}

// Transition is the plan for one operation on one account: the ledger call to
// make, the store write or delete, and the events to emit once it commits.
// Amount is the value the ledger call moves.
type Transition struct {
	From   State
	To     State
	Ledger LedgerAction
	Amount id.Balance
	Events []audit.EventKind
}

// Deletes reports whether the transition removes the entry.
func (t Transition) Deletes() bool {
	return t.From.Kind == StatePresent && t.To.Kind == StateAbsent
}

var errNotRegistered = dErrors.New(dErrors.CodeNotRegistered, "account has no registered profile")

// Submit plans an owner's profile submission. A new entry reserves
// depositValue; an existing entry keeps its deposit untouched.
func (s State) Submit(depositValue id.Balance) Transition {
	if s.Kind == StatePresent {
		return Transition{
			From:   s,
			To:     s,
			Events: []audit.EventKind{audit.EventProfileUpdated, audit.EventProfileAdded},
		}
	}
	return Transition{
		From:   s,
		To:     Present(depositValue),
		Ledger: LedgerReserve,
		Amount: depositValue,
		Events: []audit.EventKind{audit.EventValueReserved, audit.EventProfileAdded},
	}
}

// Withdraw plans an owner's voluntary removal; the deposit is released.
func (s State) Withdraw() (Transition, error) {
	if s.Kind != StatePresent {
		return Transition{}, errNotRegistered
	}
	return Transition{
		From:   s,
		To:     Absent(),
		Ledger: LedgerUnreserve,
		Amount: s.Deposit,
		Events: []audit.EventKind{audit.EventValueUnreserved, audit.EventProfileDeleted},
	}, nil
}

// ForceRemove plans an administrative removal; the deposit is forfeited.
func (s State) ForceRemove() (Transition, error) {
	if s.Kind != StatePresent {
		return Transition{}, errNotRegistered
	}
	return Transition{
		From:   s,
		To:     Absent(),
		Ledger: LedgerSlash,
		Amount: s.Deposit,
		Events: []audit.EventKind{audit.EventSlashedBalance, audit.EventProfileDeleted},
	}, nil
}

// ForceSet plans an administrative overwrite. An existing deposit carries
// over. A new entry gets no reservation and zero deposit unless
// reserveOnCreate is set, in which case it reserves depositValue like an
// owner submission would.
func (s State) ForceSet(depositValue id.Balance, reserveOnCreate bool) Transition {
	if s.Kind == StatePresent {
		return Transition{From: s, To: s}
	}
	if !reserveOnCreate {
		return Transition{From: s, To: Present(0)}
	}
	return Transition{
		From:   s,
		To:     Present(depositValue),
		Ledger: LedgerReserve,
		Amount: depositValue,
		Events: []audit.EventKind{audit.EventValueReserved},
	}
}
