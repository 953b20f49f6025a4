package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs_MatchesByCode(t *testing.T) {
	err := SessionExpired("reader credential is stale")
	assert.True(t, Is(err, ErrSessionExpired))
	assert.False(t, Is(err, ErrUnauthorized))
}

func TestErrorIs_MatchesThroughWrapping(t *testing.T) {
	cause := fmt.Errorf("read coverage.json: unexpected end of JSON input")
	err := DataIntegrity("coverage metadata is malformed").WithCause(cause)

	assert.True(t, Is(err, ErrDataIntegrity))
	assert.ErrorContains(t, err, "unexpected end of JSON input")
	require.NotNil(t, Unwrap(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeSessionExpired, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeProvider, http.StatusBadGateway},
		{CodeDataIntegrity, http.StatusInternalServerError},
		{CodeConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}

func TestRemediationHints(t *testing.T) {
	assert.Equal(t, "re-authenticate to obtain a new session", SessionExpired("x").Hint)
	assert.Equal(t, "correct the request and retry", Validation("x").Hint)
	assert.NotEmpty(t, DataIntegrity("x").Hint)

	custom := Provider("tts failed").WithHint("check the provider API key")
	assert.Equal(t, "check the provider API key", custom.Hint)
	assert.Equal(t, CodeProvider, custom.Code)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Provider("upstream 503")))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: i/o timeout")))
	assert.False(t, IsTransient(SessionExpired("stale")))
	assert.False(t, IsTransient(Validation("missing asin")))
	assert.False(t, IsTransient(DataIntegrity("bad payload")))
}

func TestWithDetailsPreservesHint(t *testing.T) {
	err := ValidationWithDetails("validation failed", map[string]string{"asin": "is required"})
	assert.Equal(t, CodeValidation, err.Code)
	assert.NotEmpty(t, err.Hint)
	assert.NotNil(t, err.Details)
}
