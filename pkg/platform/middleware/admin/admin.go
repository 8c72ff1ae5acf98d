package admin

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	dErrors "profilereg/pkg/domain-errors"
	request "profilereg/pkg/platform/middleware/request"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/requestcontext"
)

// HeaderAdminToken carries the operator token.
const HeaderAdminToken = "X-Admin-Token"

// ActorAdminToken names the root origin granted by the operator token.
const ActorAdminToken = "admin-token"

// TokenVerifier decides whether a presented operator token is valid.
type TokenVerifier interface {
	VerifyAdminToken(token string) bool
}

type plainToken []byte

// PlainToken verifies against a token held in memory. An empty expected
// token matches nothing.
func PlainToken(expected string) TokenVerifier {
	return plainToken(expected)
}

func (p plainToken) VerifyAdminToken(token string) bool {
	return len(p) > 0 && subtle.ConstantTimeCompare([]byte(token), p) == 1
}

type hashedToken []byte

// HashedToken verifies against a bcrypt hash so the plaintext token never
// has to live in the server environment.
func HashedToken(hash string) TokenVerifier {
	return hashedToken(hash)
}

func (h hashedToken) VerifyAdminToken(token string) bool {
	return len(h) > 0 && bcrypt.CompareHashAndPassword(h, []byte(token)) == nil
}

// HashToken produces the bcrypt hash accepted by HashedToken.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "admin token cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "admin token is too long")
		}
		return "", fmt.Errorf("could not hash admin token: %w", err)
	}
	return string(hashed), nil
}

// RootOrigin upgrades the request to a root origin when it carries a valid
// operator token. A wrong token is rejected. Requests without the header keep
// whatever origin earlier middleware set, so admin accounts signing with a
// bearer token still reach the privileged authorizer.
func RootOrigin(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if verifier == nil || !verifier.VerifyAdminToken(token) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"bad_origin","error_description":"admin token rejected"}`))
				return
			}

			ctx := requestcontext.WithOrigin(r.Context(), origin.Root(ActorAdminToken))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
