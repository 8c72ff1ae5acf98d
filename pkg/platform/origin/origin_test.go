package origin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

func TestAuthenticate(t *testing.T) {
	account := id.NewAccountID()

	t.Run("signed origin yields its account", func(t *testing.T) {
		got, err := Authenticate(Signed(account))
		require.NoError(t, err)
		assert.Equal(t, account, got)
	})

	t.Run("root is not a signed account", func(t *testing.T) {
		_, err := Authenticate(Root("ops"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadOrigin))
	})

	t.Run("none is rejected", func(t *testing.T) {
		_, err := Authenticate(None())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadOrigin))
	})
}

func TestAuthorizers(t *testing.T) {
	ctx := context.Background()
	admin := id.NewAccountID()
	user := id.NewAccountID()

	tests := []struct {
		name       string
		authorizer Authorizer
		origin     Origin
		allowed    bool
	}{
		{"root only admits root", RootOnly(), Root("ops"), true},
		{"root only rejects signed", RootOnly(), Signed(admin), false},
		{"root only rejects none", RootOnly(), None(), false},
		{"allowlist admits root", RootOrAccounts(admin), Root(""), true},
		{"allowlist admits listed account", RootOrAccounts(admin), Signed(admin), true},
		{"allowlist rejects other account", RootOrAccounts(admin), Signed(user), false},
		{"allowlist rejects none", RootOrAccounts(admin), None(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.authorizer.AuthorizePrivileged(ctx, tt.origin)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func TestAliasesResolve(t *testing.T) {
	ctx := context.Background()
	treasury := id.NewAccountID()
	resolver := NewAliases(map[string]id.AccountID{"Treasury": treasury})

	t.Run("alias is case-insensitive", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, " treasury ")
		require.NoError(t, err)
		assert.Equal(t, treasury, got)
	})

	t.Run("falls back to account id", func(t *testing.T) {
		account := id.NewAccountID()
		got, err := resolver.Resolve(ctx, account.String())
		require.NoError(t, err)
		assert.Equal(t, account, got)
	})

	t.Run("unknown form fails with lookup_failed", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "nobody")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLookupFailed))
	})

	t.Run("nil resolver still parses ids", func(t *testing.T) {
		var nilResolver *Aliases
		account := id.NewAccountID()
		got, err := nilResolver.Resolve(ctx, account.String())
		require.NoError(t, err)
		assert.Equal(t, account, got)
	})
}
