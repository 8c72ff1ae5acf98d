package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "profilereg/pkg/domain"
	request "profilereg/pkg/platform/middleware/request"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/requestcontext"
)

// AccountValidator validates a bearer token and returns the signing account.
type AccountValidator interface {
	ValidateAccount(tokenString string) (id.AccountID, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// SignedOrigin attaches a signed origin for requests with a valid bearer
// token. Requests without an Authorization header pass through with no
// origin; the registry rejects them where a signature is required. A
// malformed or invalid token is rejected here.
func SignedOrigin(validator AccountValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "bad_origin", "Missing or invalid Authorization header")
				return
			}

			account, err := validator.ValidateAccount(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "bad_origin", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithOrigin(ctx, origin.Signed(account))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
