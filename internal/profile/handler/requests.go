package handler

import (
	"time"

	"profilereg/internal/ledger"
	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
	"profilereg/pkg/platform/audit"
)

// ProfileRequest is the body of owner and admin profile writes. Name and
// title are bounded in bytes by the registry, not here.
type ProfileRequest struct {
	Name  string `json:"name"`
	Age   *int   `json:"age"`
	Title string `json:"title"`
}

// Validate checks transport level shape only.
func (r ProfileRequest) Validate() error {
	if r.Age == nil {
		return dErrors.New(dErrors.CodeBadRequest, "age is required")
	}
	if *r.Age < 0 || *r.Age > 255 {
		return dErrors.New(dErrors.CodeBadRequest, "age must be between 0 and 255")
	}
	return nil
}

type MintRequest struct {
	Amount uint64 `json:"amount"`
}

func (r MintRequest) Validate() error {
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	return nil
}

type ProfileResponse struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Age     uint8  `json:"age"`
	Title   string `json:"title"`
	Deposit uint64 `json:"deposit"`
}

func toProfileResponse(account id.AccountID, e *models.Entry) ProfileResponse {
	return ProfileResponse{
		Account: account.String(),
		Name:    string(e.Profile.Name),
		Age:     e.Profile.Age,
		Title:   string(e.Profile.Title),
		Deposit: uint64(e.Deposit),
	}
}

type BalanceResponse struct {
	Account  string `json:"account"`
	Free     uint64 `json:"free"`
	Reserved uint64 `json:"reserved"`
}

func toBalanceResponse(account id.AccountID, b ledger.AccountBalance) BalanceResponse {
	return BalanceResponse{Account: account.String(), Free: uint64(b.Free), Reserved: uint64(b.Reserved)}
}

type EventResponse struct {
	Kind      string    `json:"kind"`
	Account   string    `json:"account"`
	Amount    *uint64   `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
}

type EventsResponse struct {
	Events []EventResponse `json:"events"`
}

func toEventsResponse(events []audit.Event) EventsResponse {
	out := EventsResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp := EventResponse{
			Kind:      string(e.Kind),
			Account:   e.Account.String(),
			Timestamp: e.Timestamp,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
		}
		if e.Kind.CarriesAmount() {
			amount := uint64(e.Amount)
			resp.Amount = &amount
		}
		out.Events = append(out.Events, resp)
	}
	return out
}
