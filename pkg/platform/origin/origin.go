// Package origin models who is calling the registry and the two checks the
// registry needs from that: who signed the call, and whether the caller may
// perform privileged operations.
package origin

import (
	"context"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

// Kind is the closed set of caller origins.
type Kind uint8

const (
	KindNone Kind = iota
	KindSigned
	KindRoot
)

func (k Kind) String() string {
	switch k {
	case KindSigned:
		return "signed"
	case KindRoot:
		return "root"
	default:
		return "none"
	}
}

// Origin is an already-verified description of the caller. The zero value is
// None.
type Origin struct {
	kind    Kind
	account id.AccountID
	actor   string
}

// None is an unauthenticated caller.
func None() Origin { return Origin{} }

// Signed is a caller that proved control of account.
func Signed(account id.AccountID) Origin {
	return Origin{kind: KindSigned, account: account, actor: account.String()}
}

// Root is the privileged administrative origin. actor labels who presented
// the credential and is used for audit only.
func Root(actor string) Origin {
	if actor == "" {
		actor = "root"
	}
	return Origin{kind: KindRoot, actor: actor}
}

func (o Origin) Kind() Kind { return o.kind }

// Account returns the signing account for signed origins.
func (o Origin) Account() (id.AccountID, bool) {
	return o.account, o.kind == KindSigned
}

// Actor returns an audit label for the caller, or "" for None.
func (o Origin) Actor() string { return o.actor }

// Authenticate returns the signing account, failing with CodeBadOrigin for
// anything but a signed origin.
func Authenticate(o Origin) (id.AccountID, error) {
	account, ok := o.Account()
	if !ok || account.IsNil() {
		return id.AccountID{}, dErrors.New(dErrors.CodeBadOrigin, "signed origin required")
	}
	return account, nil
}

// Authorizer decides whether an origin may perform privileged operations.
type Authorizer interface {
	AuthorizePrivileged(ctx context.Context, o Origin) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, o Origin) error

func (f AuthorizerFunc) AuthorizePrivileged(ctx context.Context, o Origin) error {
	return f(ctx, o)
}

var errUnauthorized = dErrors.New(dErrors.CodeUnauthorized, "privileged origin required")

// RootOnly admits only the root origin.
func RootOnly() Authorizer {
	return AuthorizerFunc(func(_ context.Context, o Origin) error {
		if o.kind == KindRoot {
			return nil
		}
		return errUnauthorized
	})
}

// RootOrAccounts admits root and any signed origin whose account is listed.
func RootOrAccounts(accounts ...id.AccountID) Authorizer {
	allowed := make(map[id.AccountID]struct{}, len(accounts))
	for _, a := range accounts {
		allowed[a] = struct{}{}
	}
	return AuthorizerFunc(func(_ context.Context, o Origin) error {
		switch o.kind {
		case KindRoot:
			return nil
		case KindSigned:
			if _, ok := allowed[o.account]; ok {
				return nil
			}
		}
		return errUnauthorized
	})
}
