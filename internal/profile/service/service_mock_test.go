package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Ledger,SlashSink,AuditPublisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"profilereg/internal/profile/models"
	"profilereg/internal/profile/service/mocks"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/audit"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/platform/sentinel"
)

type mockDeps struct {
	store     *mocks.MockStore
	ledger    *mocks.MockLedger
	sink      *mocks.MockSlashSink
	publisher *mocks.MockAuditPublisher
}

func newMockService(t *testing.T, cfg Config) (*Service, mockDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := mockDeps{
		store:     mocks.NewMockStore(ctrl),
		ledger:    mocks.NewMockLedger(ctrl),
		sink:      mocks.NewMockSlashSink(ctrl),
		publisher: mocks.NewMockAuditPublisher(ctrl),
	}
	svc, err := New(cfg, deps.store, deps.ledger, deps.sink, origin.RootOnly(), origin.NewAliases(nil),
		WithAuditPublisher(deps.publisher))
	require.NoError(t, err)
	return svc, deps
}

func expectEvents(p *mocks.MockAuditPublisher, account id.AccountID, want ...audit.Event) {
	calls := make([]any, 0, len(want))
	for _, w := range want {
		calls = append(calls, p.EXPECT().Emit(gomock.Any(), gomock.Cond(func(e audit.Event) bool {
			return e.Kind == w.Kind && e.Account == account && e.Amount == w.Amount
		})).Return(nil))
	}
	gomock.InOrder(calls...)
}

func entryWith(deposit id.Balance) *models.Entry {
	return &models.Entry{Profile: models.Profile{Name: []byte("alice"), Age: 30}, Deposit: deposit}
}

func TestSubmitProfile_ReservesExactlyOnceForNewEntry(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	gomock.InOrder(
		deps.store.EXPECT().Get(gomock.Any(), alice).Return(nil, false, nil),
		deps.ledger.EXPECT().Reserve(gomock.Any(), alice, id.Balance(50)).Return(nil).Times(1),
		deps.store.EXPECT().Put(gomock.Any(), alice, gomock.Cond(func(e *models.Entry) bool {
			return e.Deposit == 50 && string(e.Profile.Name) == "alice"
		})).Return(nil),
	)
	expectEvents(deps.publisher, alice,
		audit.Event{Kind: audit.EventValueReserved, Amount: 50},
		audit.Event{Kind: audit.EventProfileAdded},
	)

	_, err := svc.SubmitProfile(context.Background(), origin.Signed(alice), []byte("alice"), 30, []byte("eng"))
	require.NoError(t, err)
}

func TestSubmitProfile_UpdateMakesNoLedgerCall(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	deps.store.EXPECT().Get(gomock.Any(), alice).Return(entryWith(70), true, nil)
	deps.ledger.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	deps.store.EXPECT().Put(gomock.Any(), alice, gomock.Cond(func(e *models.Entry) bool {
		return e.Deposit == 70 && string(e.Profile.Name) == "alicia"
	})).Return(nil)
	expectEvents(deps.publisher, alice,
		audit.Event{Kind: audit.EventProfileUpdated},
		audit.Event{Kind: audit.EventProfileAdded},
	)

	entry, err := svc.SubmitProfile(context.Background(), origin.Signed(alice), []byte("alicia"), 30, nil)
	require.NoError(t, err)
	assert.Equal(t, id.Balance(70), entry.Deposit)
}

func TestSubmitProfile_FailedWriteReleasesReservation(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	gomock.InOrder(
		deps.store.EXPECT().Get(gomock.Any(), alice).Return(nil, false, nil),
		deps.ledger.EXPECT().Reserve(gomock.Any(), alice, id.Balance(50)).Return(nil),
		deps.store.EXPECT().Put(gomock.Any(), alice, gomock.Any()).Return(sentinel.ErrUnavailable),
		deps.ledger.EXPECT().Unreserve(gomock.Any(), alice, id.Balance(50)).Return(id.Balance(50)),
	)

	_, err := svc.SubmitProfile(context.Background(), origin.Signed(alice), []byte("alice"), 30, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestSubmitProfile_LedgerErrorPropagates(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()
	insufficient := dErrors.New(dErrors.CodeInsufficientBalance, "free balance too low")

	deps.store.EXPECT().Get(gomock.Any(), alice).Return(nil, false, nil)
	deps.ledger.EXPECT().Reserve(gomock.Any(), alice, id.Balance(50)).Return(insufficient)

	_, err := svc.SubmitProfile(context.Background(), origin.Signed(alice), []byte("alice"), 30, nil)
	require.ErrorIs(t, err, insufficient)
}

func TestSubmitProfile_TooLongTouchesNothing(t *testing.T) {
	svc, _ := newMockService(t, Config{MaxLength: 3, DepositValue: 50})

	_, err := svc.SubmitProfile(context.Background(), origin.Signed(id.NewAccountID()), []byte("four"), 1, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTooLong))
}

func TestWithdrawProfile_AbsentMakesNoLedgerCall(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	deps.store.EXPECT().Remove(gomock.Any(), alice).Return(nil, false, nil)

	err := svc.WithdrawProfile(context.Background(), origin.Signed(alice))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotRegistered))
}

func TestWithdrawProfile_UnreservesStoredAmount(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	gomock.InOrder(
		deps.store.EXPECT().Remove(gomock.Any(), alice).Return(entryWith(70), true, nil),
		deps.ledger.EXPECT().Unreserve(gomock.Any(), alice, id.Balance(70)).Return(id.Balance(70)),
	)
	expectEvents(deps.publisher, alice,
		audit.Event{Kind: audit.EventValueUnreserved, Amount: 70},
		audit.Event{Kind: audit.EventProfileDeleted},
	)

	require.NoError(t, svc.WithdrawProfile(context.Background(), origin.Signed(alice)))
}

func TestWithdrawProfile_PartialReleaseReportsRealizedAmount(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	deps.store.EXPECT().Remove(gomock.Any(), alice).Return(entryWith(50), true, nil)
	deps.ledger.EXPECT().Unreserve(gomock.Any(), alice, id.Balance(50)).Return(id.Balance(20))
	expectEvents(deps.publisher, alice,
		audit.Event{Kind: audit.EventValueUnreserved, Amount: 20},
		audit.Event{Kind: audit.EventProfileDeleted},
	)

	require.NoError(t, svc.WithdrawProfile(context.Background(), origin.Signed(alice)))
}

func TestWithdrawProfile_FailedDeleteLeavesLedgerUntouched(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	alice := id.NewAccountID()

	deps.store.EXPECT().Remove(gomock.Any(), alice).Return(nil, false, errors.New("connection reset"))
	deps.ledger.EXPECT().Unreserve(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := svc.WithdrawProfile(context.Background(), origin.Signed(alice))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestForceRemove_UnauthorizedBeforeAnyLookup(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})

	deps.store.EXPECT().Remove(gomock.Any(), gomock.Any()).Times(0)
	deps.store.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	err := svc.ForceRemove(context.Background(), origin.Signed(id.NewAccountID()), "garbage lookup")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestForceRemove_PartialSlashReportsRealizedAmount(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	bob := id.NewAccountID()
	forfeited := id.Forfeited{Source: bob, Amount: 30}

	gomock.InOrder(
		deps.store.EXPECT().Remove(gomock.Any(), bob).Return(entryWith(50), true, nil),
		deps.ledger.EXPECT().SlashReserved(gomock.Any(), bob, id.Balance(50)).Return(forfeited, id.Balance(30)),
		deps.sink.EXPECT().OnForfeited(gomock.Any(), forfeited),
	)
	expectEvents(deps.publisher, bob,
		audit.Event{Kind: audit.EventSlashedBalance, Amount: 30},
		audit.Event{Kind: audit.EventProfileDeleted},
	)

	require.NoError(t, svc.ForceRemove(context.Background(), origin.Root("ops"), bob.String()))
}

func TestForceSetProfile_NoLedgerCallByDefault(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 50})
	bob := id.NewAccountID()

	deps.store.EXPECT().Get(gomock.Any(), bob).Return(nil, false, nil)
	deps.store.EXPECT().Put(gomock.Any(), bob, gomock.Cond(func(e *models.Entry) bool {
		return e.Deposit == 0
	})).Return(nil)
	deps.ledger.EXPECT().Reserve(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	deps.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	_, entry, err := svc.ForceSetProfile(context.Background(), origin.Root("ops"), bob.String(), []byte("bob"), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, id.Balance(0), entry.Deposit)
}

func TestPublishFailureDoesNotFailCommittedOperation(t *testing.T) {
	svc, deps := newMockService(t, Config{MaxLength: 10, DepositValue: 0})
	alice := id.NewAccountID()

	deps.store.EXPECT().Get(gomock.Any(), alice).Return(nil, false, nil)
	deps.ledger.EXPECT().Reserve(gomock.Any(), alice, id.Balance(0)).Return(nil)
	deps.store.EXPECT().Put(gomock.Any(), alice, gomock.Any()).Return(nil)
	deps.publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("buffer full")).Times(2)

	_, err := svc.SubmitProfile(context.Background(), origin.Signed(alice), []byte("a"), 1, nil)
	require.NoError(t, err)
}
