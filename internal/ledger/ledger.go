// Package ledger is an in-process currency ledger with free and reserved
// balances. It stands in for the host ledger the registry reserves deposits
// on, and is what cmd/server runs against.
package ledger

import (
	"context"
	"sync"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// AccountBalance is a snapshot of one account.
type AccountBalance struct {
	Free     id.Balance `json:"free"`
	Reserved id.Balance `json:"reserved"`
}

// Total returns free plus reserved balance.
func (b AccountBalance) Total() id.Balance {
	return b.Free.SaturatingAdd(b.Reserved)
}

// Memory keeps balances in a map guarded by a single mutex. Every method is
// atomic with respect to the others.
type Memory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]AccountBalance
	issuance id.Balance
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[id.AccountID]AccountBalance)}
}

// Mint credits amount to who's free balance and grows total issuance.
func (m *Memory) Mint(_ context.Context, who id.AccountID, amount id.Balance) AccountBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.accounts[who]
	bal.Free = bal.Free.SaturatingAdd(amount)
	m.accounts[who] = bal
	m.issuance = m.issuance.SaturatingAdd(amount)
	return bal
}

// Balance returns who's current balance; unknown accounts are zero.
func (m *Memory) Balance(_ context.Context, who id.AccountID) AccountBalance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[who]
}

// TotalIssuance returns the sum of all minted value not yet burned.
func (m *Memory) TotalIssuance() id.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.issuance
}

// Reserve moves amount from free to reserved. It fails with
// CodeInsufficientBalance and changes nothing when free balance is short.
func (m *Memory) Reserve(_ context.Context, who id.AccountID, amount id.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.accounts[who]
	if bal.Free < amount {
		return dErrors.New(dErrors.CodeInsufficientBalance, "free balance too low to reserve deposit")
	}
	bal.Free -= amount
	bal.Reserved = bal.Reserved.SaturatingAdd(amount)
	m.accounts[who] = bal
	return nil
}

// Unreserve moves up to amount from reserved back to free and returns the
// amount actually moved.
func (m *Memory) Unreserve(_ context.Context, who id.AccountID, amount id.Balance) id.Balance {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.accounts[who]
	moved := bal.Reserved.Min(amount)
	bal.Reserved -= moved
	bal.Free = bal.Free.SaturatingAdd(moved)
	m.accounts[who] = bal
	return moved
}

// SlashReserved removes up to amount from who's reserved balance. The removed
// value leaves the account; it is still counted in total issuance until a
// sink burns it.
func (m *Memory) SlashReserved(_ context.Context, who id.AccountID, amount id.Balance) (id.Forfeited, id.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.accounts[who]
	slashed := bal.Reserved.Min(amount)
	bal.Reserved -= slashed
	m.accounts[who] = bal
	return id.Forfeited{Source: who, Amount: slashed}, slashed
}

func (m *Memory) burn(amount id.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issuance = m.issuance.SaturatingSub(amount)
}

func (m *Memory) credit(who id.AccountID, amount id.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.accounts[who]
	bal.Free = bal.Free.SaturatingAdd(amount)
	m.accounts[who] = bal
}
