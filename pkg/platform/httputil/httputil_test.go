package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "profilereg/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok)
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	})

	t.Run("registry codes map to statuses with description", func(t *testing.T) {
		tests := []struct {
			code   dErrors.Code
			status int
		}{
			{dErrors.CodeTooLong, http.StatusUnprocessableEntity},
			{dErrors.CodeNotRegistered, http.StatusNotFound},
			{dErrors.CodeInsufficientBalance, http.StatusPaymentRequired},
			{dErrors.CodeUnauthorized, http.StatusForbidden},
			{dErrors.CodeBadOrigin, http.StatusUnauthorized},
			{dErrors.CodeLookupFailed, http.StatusBadRequest},
			{dErrors.CodeBadRequest, http.StatusBadRequest},
			{dErrors.CodeTimeout, http.StatusGatewayTimeout},
			{dErrors.CodeConflict, http.StatusConflict},
			{dErrors.CodeUnavailable, http.StatusServiceUnavailable},
		}
		for _, tt := range tests {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tt.code, "detail"))
			assert.Equal(t, tt.status, w.Code, string(tt.code))

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, string(tt.code), body["error"])
			assert.Equal(t, "detail", body["error_description"])
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"alice"}`, false},
		{"unknown field", `{"name":"alice","extra":1}`, true},
		{"trailing object", `{"name":"a"}{"name":"b"}`, true},
		{"not json", `name=alice`, true},
		{"oversized", `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(r, &p)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "alice", p.Name)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}
