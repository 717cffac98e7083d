package api

import (
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v any) map[string]any {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	data := map[string]string{"id": "note-123", "title": "Test"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	out := roundTrip(t, result)
	assert.EqualValues(t, EnvelopeVersion, out["v"])
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out, "data")
	assert.NotContains(t, out, "error")
}

func TestEnvelopeTransformer_SuccessNilData(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	out := roundTrip(t, result)
	assert.EqualValues(t, EnvelopeVersion, out["v"])
	assert.Equal(t, true, out["success"])
}

func TestEnvelopeTransformer_SimpleError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "404", &APIError{Message: "Resource not found"})
	require.NoError(t, err)

	out := roundTrip(t, result)
	assert.Equal(t, false, out["success"])
	// Errors without a code collapse down to a plain string.
	assert.IsType(t, "", out["error"])
}

func TestEnvelopeTransformer_DetailedError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "400", &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
		Details: map[string]string{"title": "is required"},
	})
	require.NoError(t, err)

	out := roundTrip(t, result)
	assert.Equal(t, false, out["success"])

	errObj, ok := out["error"].(map[string]any)
	require.True(t, ok, "detailed errors keep code/message/details")
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Equal(t, "validation failed", errObj["message"])
	assert.Contains(t, errObj, "details")
}

func TestEnvelopeTransformer_NoDoubleWrap(t *testing.T) {
	wrapped := &APIEnvelope{V: EnvelopeVersion, Success: true}

	result, err := EnvelopeTransformer(nil, "200", wrapped)
	require.NoError(t, err)
	assert.Same(t, wrapped, result)
}

func TestEnvelopeTransformer_RawBytesPassThrough(t *testing.T) {
	raw := []byte("# Markdown export")

	result, err := EnvelopeTransformer(nil, "200", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, result)
}
