package apierror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEnvelope(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   string
	}{
		{err: Validation("bad"), status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{err: Unauthorized(""), status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{err: NotFound(""), status: http.StatusNotFound, code: "NOT_FOUND"},
		{err: Conflict("NO_STOCK", "empty"), status: http.StatusConflict, code: "NO_STOCK"},
		{err: BadGateway("", "down"), status: http.StatusBadGateway, code: "BAD_GATEWAY"},
		{err: InternalError(""), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.err.Write(rec)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}
