package validation_test

import (
	"errors"
	"net/http"
	"testing"

	domainerrors "github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/validation"
	"github.com/stretchr/testify/assert"
)

type TestRequest struct {
	ASIN     string `json:"asin" validate:"required,min=10,max=10"`
	Provider string `json:"ttsProvider" validate:"required,oneof=cartesia elevenlabs"`
	Start    int64  `json:"startPositionId" validate:"gte=0"`
	End      int64  `json:"endPositionId" validate:"gtefield=Start"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		ASIN:     "B000FC0SIS",
		Provider: "cartesia",
		Start:    0,
		End:      5000,
	}

	err := v.Validate(req)
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	//nolint:govet // fieldalignment: Minor memory optimization not worth the complexity in test code
	tests := []struct {
		name        string
		req         TestRequest
		wantErrCode int
		wantErrMsg  string
	}{
		{
			name: "missing required field",
			req: TestRequest{
				ASIN:     "", // Missing
				Provider: "cartesia",
				End:      100,
			},
			wantErrCode: http.StatusBadRequest,
			wantErrMsg:  "asin",
		},
		{
			name: "unknown provider",
			req: TestRequest{
				ASIN:     "B000FC0SIS",
				Provider: "polly",
				End:      100,
			},
			wantErrCode: http.StatusBadRequest,
			wantErrMsg:  "ttsProvider",
		},
		{
			name: "asin too short",
			req: TestRequest{
				ASIN:     "B000",
				Provider: "cartesia",
				End:      100,
			},
			wantErrCode: http.StatusBadRequest,
			wantErrMsg:  "asin",
		},
		{
			name: "end before start",
			req: TestRequest{
				ASIN:     "B000FC0SIS",
				Provider: "cartesia",
				Start:    500,
				End:      100,
			},
			wantErrCode: http.StatusBadRequest,
			wantErrMsg:  "endPositionId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			assert.Error(t, err)

			var domainErr *domainerrors.Error
			if assert.True(t, errors.As(err, &domainErr)) {
				assert.Equal(t, tt.wantErrCode, domainErr.HTTPStatus())
				assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			}
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := TestRequest{
		ASIN:     "",
		Provider: "cartesia",
	}

	err := v.Validate(req)
	assert.Error(t, err)

	// Should use JSON tag name "asin", not struct field name "ASIN"
	var domainErr *domainerrors.Error
	assert.True(t, errors.As(err, &domainErr))
	details, ok := domainErr.Details.(map[string]string)
	assert.True(t, ok)
	assert.Contains(t, details, "asin")
	assert.NotContains(t, details, "ASIN")
}
