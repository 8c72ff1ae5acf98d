package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"profilereg/internal/ledger"
	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/audit"
	"profilereg/pkg/platform/httputil"
	"profilereg/pkg/platform/middleware/admin"
	"profilereg/pkg/platform/middleware/auth"
	request "profilereg/pkg/platform/middleware/request"
	"profilereg/pkg/platform/middleware/requesttime"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/requestcontext"
)

// Service is the registry as seen by the transport.
type Service interface {
	SubmitProfile(ctx context.Context, o origin.Origin, name []byte, age uint8, title []byte) (*models.Entry, error)
	WithdrawProfile(ctx context.Context, o origin.Origin) error
	ForceRemove(ctx context.Context, o origin.Origin, lookup string) error
	ForceSetProfile(ctx context.Context, o origin.Origin, lookup string, name []byte, age uint8, title []byte) (id.AccountID, *models.Entry, error)
	Profile(ctx context.Context, lookup string) (id.AccountID, *models.Entry, error)
}

// Balances is the reference ledger's operator surface.
type Balances interface {
	Mint(ctx context.Context, who id.AccountID, amount id.Balance) ledger.AccountBalance
	Balance(ctx context.Context, who id.AccountID) ledger.AccountBalance
}

type EventLister interface {
	List(ctx context.Context, account id.AccountID) ([]audit.Event, error)
}

// Access bundles the origin plumbing: how bearer tokens and the operator
// token become origins, and who counts as privileged.
type Access struct {
	Validator  auth.AccountValidator
	AdminToken admin.TokenVerifier
	Authorizer origin.Authorizer
	Resolver   origin.Resolver
}

// Handler serves the registry over HTTP.
type Handler struct {
	logger   *slog.Logger
	registry Service
	balances Balances
	events   EventLister
	access   Access
}

// New creates a new registry Handler.
func New(registry Service, balances Balances, events EventLister, access Access, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		balances: balances,
		events:   events,
		access:   access,
	}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(request.Recovery(h.logger))
	router.Use(request.RequestID)
	router.Use(request.Logger(h.logger))
	router.Use(requesttime.Middleware)
	router.Use(auth.SignedOrigin(h.access.Validator, h.logger))

	router.Put("/profile", h.handleSubmitProfile)
	router.Delete("/profile", h.handleWithdrawProfile)
	router.Get("/profiles/{lookup}", h.handleGetProfile)
	router.Get("/balances/{lookup}", h.handleGetBalance)

	router.Route("/admin", func(ar chi.Router) {
		ar.Use(admin.RootOrigin(h.access.AdminToken, h.logger))
		ar.Put("/profiles/{lookup}", h.handleForceSetProfile)
		ar.Delete("/profiles/{lookup}", h.handleForceRemove)
		ar.Post("/balances/{lookup}/mint", h.handleMint)
		ar.Get("/events/{lookup}", h.handleListEvents)
	})

	r.Mount("/", router)
}

func (h *Handler) handleSubmitProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o := requestcontext.Origin(ctx)

	req, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	entry, err := h.registry.SubmitProfile(ctx, o, []byte(req.Name), uint8(*req.Age), []byte(req.Title))
	if err != nil {
		h.writeError(ctx, w, "submit profile", err)
		return
	}
	account, _ := o.Account()
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(account, entry))
}

func (h *Handler) handleWithdrawProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.registry.WithdrawProfile(ctx, requestcontext.Origin(ctx)); err != nil {
		h.writeError(ctx, w, "withdraw profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lookup := chi.URLParam(r, "lookup")

	account, entry, err := h.registry.Profile(ctx, lookup)
	if err != nil {
		h.writeError(ctx, w, "get profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(account, entry))
}

func (h *Handler) handleForceSetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lookup := chi.URLParam(r, "lookup")

	req, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	account, entry, err := h.registry.ForceSetProfile(ctx, requestcontext.Origin(ctx), lookup, []byte(req.Name), uint8(*req.Age), []byte(req.Title))
	if err != nil {
		h.writeError(ctx, w, "force set profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(account, entry))
}

func (h *Handler) handleForceRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.registry.ForceRemove(ctx, requestcontext.Origin(ctx), chi.URLParam(r, "lookup")); err != nil {
		h.writeError(ctx, w, "force remove", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := h.privilegedTarget(w, r, "mint")
	if !ok {
		return
	}

	var req MintRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, "mint", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(ctx, w, "mint", err)
		return
	}

	balance := h.balances.Mint(ctx, account, id.Balance(req.Amount))
	h.logger.InfoContext(ctx, "balance minted",
		"account", account,
		"amount", req.Amount,
		"actor", requestcontext.Origin(ctx).Actor(),
		"request_id", request.GetRequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, toBalanceResponse(account, balance))
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.access.Resolver.Resolve(ctx, chi.URLParam(r, "lookup"))
	if err != nil {
		h.writeError(ctx, w, "get balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBalanceResponse(account, h.balances.Balance(ctx, account)))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, ok := h.privilegedTarget(w, r, "list events")
	if !ok {
		return
	}

	events, err := h.events.List(ctx, account)
	if err != nil {
		h.writeError(ctx, w, "list events", dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventsResponse(events))
}

// privilegedTarget authorizes the request origin and resolves the {lookup}
// path parameter, writing the error response itself on failure.
func (h *Handler) privilegedTarget(w http.ResponseWriter, r *http.Request, action string) (id.AccountID, bool) {
	ctx := r.Context()
	if err := h.access.Authorizer.AuthorizePrivileged(ctx, requestcontext.Origin(ctx)); err != nil {
		h.writeError(ctx, w, action, err)
		return id.AccountID{}, false
	}
	account, err := h.access.Resolver.Resolve(ctx, chi.URLParam(r, "lookup"))
	if err != nil {
		h.writeError(ctx, w, action, err)
		return id.AccountID{}, false
	}
	return account, true
}

func (h *Handler) decodeProfile(w http.ResponseWriter, r *http.Request) (ProfileRequest, bool) {
	var req ProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(r.Context(), w, "decode profile", err)
		return req, false
	}
	if err := req.Validate(); err != nil {
		h.writeError(r.Context(), w, "decode profile", err)
		return req, false
	}
	return req, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, action+" failed",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, action+" rejected",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
