package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
)

// EnvelopeVersion is the "v" field of every response body.
const EnvelopeVersion = 1

// APIEnvelope wraps successful responses.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorEnvelope wraps failed responses.
type ErrorEnvelope struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer wraps every huma response body in the spotlight
// envelope. Register it in huma.Config.Transformers.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *APIEnvelope, *ErrorEnvelope:
		return v, nil
	case *APIError:
		return &ErrorEnvelope{
			V:       EnvelopeVersion,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case *domainerrors.Error:
		return errorEnvelope(body), nil
	case error:
		if code, err := strconv.Atoi(status); err == nil && code >= 400 {
			return &ErrorEnvelope{V: EnvelopeVersion, Code: statusToCode(code), Message: body.Error()}, nil
		}
	}

	return &APIEnvelope{V: EnvelopeVersion, Success: true, Data: v}, nil
}

func errorEnvelope(e *domainerrors.Error) *ErrorEnvelope {
	return &ErrorEnvelope{
		V:       EnvelopeVersion,
		Code:    string(e.Code),
		Message: e.Message,
		Details: e.Details,
	}
}
