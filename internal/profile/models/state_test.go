package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	audit "profilereg/pkg/platform/audit"
)

const deposit = id.Balance(50)

func TestStateOf(t *testing.T) {
	assert.Equal(t, Absent(), StateOf(nil))
	assert.Equal(t, Present(7), StateOf(&Entry{Deposit: 7}))
}

func TestSubmitTransitions(t *testing.T) {
	t.Run("absent reserves the deposit", func(t *testing.T) {
		tr := Absent().Submit(deposit)
		assert.Equal(t, Present(deposit), tr.To)
		assert.Equal(t, LedgerReserve, tr.Ledger)
		assert.Equal(t, deposit, tr.Amount)
		assert.Equal(t, []audit.EventKind{audit.EventValueReserved, audit.EventProfileAdded}, tr.Events)
		assert.False(t, tr.Deletes())
	})

	t.Run("present keeps its deposit and touches no ledger", func(t *testing.T) {
		tr := Present(deposit).Submit(999)
		assert.Equal(t, Present(deposit), tr.To)
		assert.Equal(t, LedgerNone, tr.Ledger)
		assert.Equal(t, []audit.EventKind{audit.EventProfileUpdated, audit.EventProfileAdded}, tr.Events)
	})

	t.Run("zero-deposit entry stays at zero on submit", func(t *testing.T) {
		tr := Present(0).Submit(deposit)
		assert.Equal(t, Present(0), tr.To)
		assert.Equal(t, LedgerNone, tr.Ledger)
	})
}

func TestRemovalTransitions(t *testing.T) {
	t.Run("withdraw releases the stored deposit", func(t *testing.T) {
		tr, err := Present(deposit).Withdraw()
		require.NoError(t, err)
		assert.Equal(t, Absent(), tr.To)
		assert.Equal(t, LedgerUnreserve, tr.Ledger)
		assert.Equal(t, deposit, tr.Amount)
		assert.True(t, tr.Deletes())
		assert.Equal(t, []audit.EventKind{audit.EventValueUnreserved, audit.EventProfileDeleted}, tr.Events)
	})

	t.Run("force remove slashes the stored deposit", func(t *testing.T) {
		tr, err := Present(deposit).ForceRemove()
		require.NoError(t, err)
		assert.Equal(t, LedgerSlash, tr.Ledger)
		assert.Equal(t, deposit, tr.Amount)
		assert.True(t, tr.Deletes())
		assert.Equal(t, []audit.EventKind{audit.EventSlashedBalance, audit.EventProfileDeleted}, tr.Events)
	})

	t.Run("absent cannot be removed", func(t *testing.T) {
		_, err := Absent().Withdraw()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRegistered))
		_, err = Absent().ForceRemove()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRegistered))
	})
}

// The privileged set creates an unbacked entry by default. That breaks the
// deposit conservation invariant on purpose; these cases pin it down so a
// change to either policy is visible.
func TestForceSetTransitions(t *testing.T) {
	t.Run("absent becomes present with zero deposit and no ledger call", func(t *testing.T) {
		tr := Absent().ForceSet(deposit, false)
		assert.Equal(t, Present(0), tr.To)
		assert.Equal(t, LedgerNone, tr.Ledger)
		assert.Empty(t, tr.Events)
	})

	t.Run("absent reserves when the reserving policy is on", func(t *testing.T) {
		tr := Absent().ForceSet(deposit, true)
		assert.Equal(t, Present(deposit), tr.To)
		assert.Equal(t, LedgerReserve, tr.Ledger)
		assert.Equal(t, deposit, tr.Amount)
		assert.Equal(t, []audit.EventKind{audit.EventValueReserved}, tr.Events)
	})

	t.Run("present carries its deposit over under both policies", func(t *testing.T) {
		for _, reserve := range []bool{false, true} {
			tr := Present(deposit).ForceSet(999, reserve)
			assert.Equal(t, Present(deposit), tr.To)
			assert.Equal(t, LedgerNone, tr.Ledger)
			assert.Empty(t, tr.Events)
		}
	})
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "absent", StateAbsent.String())
	assert.Equal(t, "present", StatePresent.String())
	assert.Equal(t, "slash", LedgerSlash.String())
	assert.Equal(t, "none", LedgerNone.String())
}
