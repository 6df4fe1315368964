// Package validator checks uploads before any parsing and reports per-field
// failures.
package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docqa/pkg/errors"
)

const maxFileNameLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// ValidateUpload checks the file name, content type and size. maxBytes <= 0
// disables the size check.
func ValidateUpload(u *ingestion.Upload, maxBytes int64) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(u.FileName)
	switch {
	case name == "":
		errs["file_name"] = "file name is required"
	case len(name) > maxFileNameLength:
		errs["file_name"] = fmt.Sprintf("file name must be at most %d characters", maxFileNameLength)
	case filepath.Base(name) != name:
		errs["file_name"] = "file name must not contain a path"
	}
	if strings.TrimSpace(u.ContentType) == "" {
		errs["content_type"] = "content type is required"
	}
	switch {
	case len(u.Data) == 0:
		errs["file"] = "file must not be empty"
	case maxBytes > 0 && int64(len(u.Data)) > maxBytes:
		errs["file"] = fmt.Sprintf("file must be at most %d bytes", maxBytes)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
