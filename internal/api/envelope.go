package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is bumped when the response envelope shape changes.
// Clients check it before parsing anything else.
const EnvelopeVersion = 1

// APIEnvelope is the uniform response wrapper for every JSON endpoint.
// Success responses carry "data"; failures carry "error", which is either a
// plain string or an APIError with code/message/details.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	V       int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// EnvelopeTransformer wraps every response body in the APIEnvelope.
// Registered as a huma transformer so handlers return bare DTOs.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	// Already wrapped, or a raw byte body such as a file download.
	switch v.(type) {
	case *APIEnvelope, []byte:
		return v, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		if apiErr.Code == "" && apiErr.Details == nil {
			return &APIEnvelope{V: EnvelopeVersion, Success: false, Error: apiErr.Message}, nil
		}
		return &APIEnvelope{V: EnvelopeVersion, Success: false, Error: apiErr}, nil
	}

	if statusCode, err := strconv.Atoi(status); err == nil && statusCode >= 400 {
		if e, ok := v.(error); ok {
			return &APIEnvelope{V: EnvelopeVersion, Success: false, Error: e.Error()}, nil
		}
		return &APIEnvelope{V: EnvelopeVersion, Success: false, Error: v}, nil
	}

	return &APIEnvelope{V: EnvelopeVersion, Success: true, Data: v}, nil
}
