package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the current response envelope schema version. Clients
// check it before trusting the rest of the payload.
const EnvelopeVersion = 1

// APIEnvelope wraps every successful (or simple-error) JSON response.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v" doc:"Envelope schema version"`
	Success bool   `json:"success" doc:"Whether the request succeeded"`
	Data    any    `json:"data,omitempty" doc:"Response payload"`
	Error   string `json:"error,omitempty" doc:"Error message when success is false"`
}

// APIErrorEnvelope wraps errors that carry a machine-readable code.
type APIErrorEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v" doc:"Envelope schema version"`
	Success bool   `json:"success" doc:"Always false"`
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Hint    string `json:"hint,omitempty" doc:"Suggested remediation"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// EnvelopeTransformer wraps every response body in a versioned envelope.
// Registered as a huma transformer so handlers return plain payloads.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	// Already wrapped (e.g. re-entrant transformer invocation).
	switch v.(type) {
	case APIEnvelope, APIErrorEnvelope:
		return v, nil
	}

	if apiErr, ok := v.(*APIError); ok && (apiErr.Code != "" || apiErr.Details != nil) {
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Hint:    apiErr.Hint,
			Details: apiErr.Details,
		}, nil
	}

	if err, ok := v.(error); ok {
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	code, convErr := strconv.Atoi(status)
	if convErr != nil {
		code = 200
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: code < 400,
		Data:    v,
	}, nil
}
