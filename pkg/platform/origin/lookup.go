package origin

import (
	"context"
	"strings"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// Resolver turns a caller-supplied lookup form into an account.
type Resolver interface {
	Resolve(ctx context.Context, lookup string) (id.AccountID, error)
}

// Aliases resolves configured names first and falls back to parsing the
// lookup as an account id.
type Aliases struct {
	names map[string]id.AccountID
}

// NewAliases builds a resolver from name→account pairs. Names are matched
// case-insensitively.
func NewAliases(names map[string]id.AccountID) *Aliases {
	normalized := make(map[string]id.AccountID, len(names))
	for name, account := range names {
		normalized[strings.ToLower(strings.TrimSpace(name))] = account
	}
	return &Aliases{names: normalized}
}

// Resolve implements Resolver.
func (a *Aliases) Resolve(_ context.Context, lookup string) (id.AccountID, error) {
	lookup = strings.TrimSpace(lookup)
	if a != nil {
		if account, ok := a.names[strings.ToLower(lookup)]; ok {
			return account, nil
		}
	}
	account, err := id.ParseAccountID(lookup)
	if err != nil {
		return id.AccountID{}, dErrors.Wrap(err, dErrors.CodeLookupFailed, "cannot resolve account")
	}
	return account, nil
}
