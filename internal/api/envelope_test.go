package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{name: "success response", status: "200", input: map[string]string{"key": "value"}},
		{name: "created response", status: "201", input: map[string]string{"id": "123"}},
		{name: "bad request error", status: "400", input: errors.New("invalid input")},
		{name: "domain error", status: "404", input: domainerrors.NotFound("post not found")},
		{
			name:   "conflict error with details",
			status: "409",
			input: &APIError{
				status:  http.StatusConflict,
				Code:    "CONFLICT",
				Message: "username taken",
				Details: map[string]string{"username": "ana"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			jsonBytes, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &envelope))
			assert.Equal(t, float64(EnvelopeVersion), envelope["v"])
			assert.Contains(t, envelope, "success")
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"caption": "sunset"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(*APIEnvelope)
	require.True(t, ok, "expected *APIEnvelope")
	assert.Equal(t, EnvelopeVersion, envelope.V)
	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)
}

func TestEnvelopeTransformer_PlainError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", errors.New("validation failed"))
	require.NoError(t, err)

	envelope, ok := result.(*ErrorEnvelope)
	require.True(t, ok, "expected *ErrorEnvelope")
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
	assert.Equal(t, "validation failed", envelope.Message)
}

func TestEnvelopeTransformer_DomainErrorWithDetails(t *testing.T) {
	domainErr := domainerrors.ValidationWithDetails("invalid comment", map[string]string{"text": "is required"})

	result, err := EnvelopeTransformer(nil, "400", domainErr)
	require.NoError(t, err)

	envelope, ok := result.(*ErrorEnvelope)
	require.True(t, ok, "expected *ErrorEnvelope")
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
	assert.Equal(t, "invalid comment", envelope.Message)
	assert.Equal(t, map[string]string{"text": "is required"}, envelope.Details)
}

func TestToAPIError(t *testing.T) {
	apiErr := toAPIError(domainerrors.Forbidden("not your post"))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.GetStatus())
	assert.Equal(t, "FORBIDDEN", apiErr.Code)

	assert.Nil(t, toAPIError(errors.New("boom")))
}

func TestStatusToCode(t *testing.T) {
	assert.Equal(t, "UNAUTHENTICATED", statusToCode(http.StatusUnauthorized))
	assert.Equal(t, "VALIDATION_ERROR", statusToCode(http.StatusUnprocessableEntity))
	assert.Equal(t, "VALIDATION_ERROR", statusToCode(http.StatusRequestEntityTooLarge))
	assert.Equal(t, "RATE_LIMITED", statusToCode(http.StatusTooManyRequests))
	assert.Equal(t, "INTERNAL_ERROR", statusToCode(http.StatusBadGateway))
}
