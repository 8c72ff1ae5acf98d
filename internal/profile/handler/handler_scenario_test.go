package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilereg/internal/ledger"
	"profilereg/internal/profile/service"
	"profilereg/internal/profile/store"
	id "profilereg/pkg/domain"
	"profilereg/pkg/platform/audit/publisher"
	auditmemory "profilereg/pkg/platform/audit/store/memory"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/testutil"
)

func withLookup(req *http.Request, lookup string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("lookup", lookup)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func eventKinds(t *testing.T, events *publisher.Publisher, account id.AccountID) []string {
	t.Helper()
	list, err := events.List(context.Background(), account)
	require.NoError(t, err)
	kinds := make([]string, 0, len(list))
	for _, e := range list {
		kinds = append(kinds, string(e.Kind))
	}
	return kinds
}

func TestProfileLifecycleScenario(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice := id.NewAccountID()
	book := ledger.NewMemory()
	book.Mint(context.Background(), alice, 100)
	events := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	resolver := origin.NewAliases(map[string]id.AccountID{"alice": alice})

	svc, err := service.New(service.Config{MaxLength: 10, DepositValue: 50},
		store.NewInMemoryStore(), book, ledger.NewBurnSink(book, logger),
		origin.RootOnly(), resolver,
		service.WithAuditPublisher(events),
	)
	require.NoError(t, err)
	h := New(svc, book, events, Access{Authorizer: origin.RootOnly(), Resolver: resolver}, logger)

	testutil.Given(t, "a funded account with no profile", func(t *testing.T) {
		testutil.When(t, "it submits a profile", func(t *testing.T) {
			req := testutil.AsAccount(testutil.NewJSONRequest(t, http.MethodPut, "/profile",
				map[string]any{"name": "alice", "age": 30, "title": "eng"}), alice)
			rr := testutil.Serve(http.HandlerFunc(h.handleSubmitProfile), req)

			testutil.Then(t, "the deposit is reserved once", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				resp := testutil.Decode[ProfileResponse](t, rr)
				assert.Equal(t, uint64(50), resp.Deposit)
				assert.Equal(t, ledger.AccountBalance{Free: 50, Reserved: 50}, book.Balance(context.Background(), alice))
				assert.Equal(t, []string{"value_reserved", "profile_added"}, eventKinds(t, events, alice))
			})
		})

		testutil.When(t, "it resubmits with a new name", func(t *testing.T) {
			req := testutil.AsAccount(testutil.NewJSONRequest(t, http.MethodPut, "/profile",
				map[string]any{"name": "alicia", "age": 30, "title": "eng"}), alice)
			rr := testutil.Serve(http.HandlerFunc(h.handleSubmitProfile), req)

			testutil.Then(t, "nothing more is reserved", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, ledger.AccountBalance{Free: 50, Reserved: 50}, book.Balance(context.Background(), alice))
				assert.Equal(t, []string{"value_reserved", "profile_added", "profile_updated", "profile_added"}, eventKinds(t, events, alice))
			})
		})

		testutil.When(t, "it withdraws", func(t *testing.T) {
			req := testutil.AsAccount(testutil.NewJSONRequest(t, http.MethodDelete, "/profile", nil), alice)
			rr := testutil.Serve(http.HandlerFunc(h.handleWithdrawProfile), req)

			testutil.Then(t, "the deposit returns", func(t *testing.T) {
				require.Equal(t, http.StatusNoContent, rr.Code)
				assert.Equal(t, ledger.AccountBalance{Free: 100}, book.Balance(context.Background(), alice))
				kinds := eventKinds(t, events, alice)
				assert.Equal(t, []string{"value_unreserved", "profile_deleted"}, kinds[len(kinds)-2:])
			})
		})
	})

	testutil.Given(t, "a root origin and no profile", func(t *testing.T) {
		testutil.When(t, "it force removes", func(t *testing.T) {
			req := testutil.AsRoot(withLookup(testutil.NewJSONRequest(t, http.MethodDelete, "/admin/profiles/alice", nil), "alice"), "ops")
			rr := testutil.Serve(http.HandlerFunc(h.handleForceRemove), req)

			testutil.Then(t, "the target is reported as not registered", func(t *testing.T) {
				testutil.AssertError(t, rr, http.StatusNotFound, "not_registered")
			})
		})
	})

	testutil.Given(t, "a signed origin on a privileged route", func(t *testing.T) {
		req := testutil.AsAccount(withLookup(testutil.NewJSONRequest(t, http.MethodPost, "/admin/balances/alice/mint",
			map[string]any{"amount": 10}), "alice"), alice)
		rr := testutil.Serve(http.HandlerFunc(h.handleMint), req)

		testutil.Then(t, "the call is unauthorized", func(t *testing.T) {
			testutil.AssertError(t, rr, http.StatusForbidden, "unauthorized")
		})
	})
}

type countingResolver struct {
	origin.Resolver
	calls int
}

func (c *countingResolver) Resolve(ctx context.Context, lookup string) (id.AccountID, error) {
	c.calls++
	return c.Resolver.Resolve(ctx, lookup)
}

func TestLookupRoutesResolveOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bob := id.NewAccountID()
	book := ledger.NewMemory()
	resolver := &countingResolver{Resolver: origin.NewAliases(map[string]id.AccountID{"bob": bob})}

	svc, err := service.New(service.Config{MaxLength: 10, DepositValue: 50},
		store.NewInMemoryStore(), book, ledger.NewBurnSink(book, logger),
		origin.RootOnly(), resolver,
	)
	require.NoError(t, err)
	h := New(svc, book, nil, Access{Authorizer: origin.RootOnly(), Resolver: resolver}, logger)

	req := testutil.AsRoot(withLookup(testutil.NewJSONRequest(t, http.MethodPut, "/admin/profiles/BOB",
		map[string]any{"name": "bob", "age": 40}), "BOB"), "ops")
	rr := testutil.Serve(http.HandlerFunc(h.handleForceSetProfile), req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, bob.String(), testutil.Decode[ProfileResponse](t, rr).Account)
	assert.Equal(t, 1, resolver.calls)

	resolver.calls = 0
	req = withLookup(testutil.NewJSONRequest(t, http.MethodGet, "/profiles/bob", nil), "bob")
	rr = testutil.Serve(http.HandlerFunc(h.handleGetProfile), req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.Decode[ProfileResponse](t, rr)
	assert.Equal(t, bob.String(), resp.Account)
	assert.Equal(t, "bob", resp.Name)
	assert.Equal(t, 1, resolver.calls)
}
