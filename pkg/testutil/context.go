package testutil

import (
	"net/http"

	id "profilereg/pkg/domain"
	"profilereg/pkg/platform/origin"
	"profilereg/pkg/requestcontext"
)

// WithOrigin attaches o to the request the way the origin middlewares do.
func WithOrigin(req *http.Request, o origin.Origin) *http.Request {
	return req.WithContext(requestcontext.WithOrigin(req.Context(), o))
}

// AsAccount marks the request as signed by account.
func AsAccount(req *http.Request, account id.AccountID) *http.Request {
	return WithOrigin(req, origin.Signed(account))
}

// AsRoot marks the request as coming from the root origin with actor.
func AsRoot(req *http.Request, actor string) *http.Request {
	return WithOrigin(req, origin.Root(actor))
}
