package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped app error", fmt.Errorf("ingest: %w", Newf(ErrDocumentNotFound, http.StatusNotFound, "doc %s", "a")), http.StatusNotFound},
		{"not found", fmt.Errorf("get: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"locked", ErrDocumentLocked, http.StatusConflict},
		{"unsupported", ErrUnsupportedType, http.StatusBadRequest},
		{"malformed", ErrMalformedPayload, http.StatusBadRequest},
		{"external", ErrExternalService, http.StatusBadGateway},
		{"circuit open", ErrCircuitOpen, http.StatusBadGateway},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppError(t *testing.T) {
	err := Newf(ErrUnsupportedType, http.StatusBadRequest, "content type %q is not supported", "image/png")
	assert.Equal(t, `unsupported file type: content type "image/png" is not supported`, err.Error())
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, IsValidation(err))
	assert.False(t, IsValidation(ErrExternalService))
}
