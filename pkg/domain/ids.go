package domain

import (
	"encoding/json"

	"github.com/google/uuid"

	dErrors "profilereg/pkg/domain-errors"
)

// AccountID identifies a ledger account. It is the only key the registry
// accepts; the zero value is never a valid account.
type AccountID uuid.UUID

// NewAccountID returns a random account id.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// ParseAccountID parses a canonical UUID string. Empty, malformed and nil
// UUIDs are rejected with CodeInvalidInput.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return AccountID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account id")
	}
	if parsed == uuid.Nil {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id must not be nil")
	}
	return AccountID(parsed), nil
}

func (a AccountID) String() string {
	return uuid.UUID(a).String()
}

// IsNil reports whether a is the zero account.
func (a AccountID) IsNil() bool {
	return uuid.UUID(a) == uuid.Nil
}

func (a AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAccountID(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
