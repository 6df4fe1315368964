package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name   string
		upload ingestion.Upload
		field  string
	}{
		{"valid", ingestion.Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("x")}, ""},
		{"missing name", ingestion.Upload{ContentType: "text/plain", Data: []byte("x")}, "file_name"},
		{"path in name", ingestion.Upload{FileName: "../a.txt", ContentType: "text/plain", Data: []byte("x")}, "file_name"},
		{"long name", ingestion.Upload{FileName: strings.Repeat("a", 300), ContentType: "text/plain", Data: []byte("x")}, "file_name"},
		{"missing type", ingestion.Upload{FileName: "a.txt", Data: []byte("x")}, "content_type"},
		{"empty file", ingestion.Upload{FileName: "a.txt", ContentType: "text/plain"}, "file"},
		{"too large", ingestion.Upload{FileName: "a.txt", ContentType: "text/plain", Data: make([]byte, 11)}, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(&tt.upload, 10)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"file": "empty", "content_type": "missing"}}
	assert.Equal(t, "content_type: missing; file: empty", err.Error())
}
