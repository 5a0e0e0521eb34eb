package settings

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig matches every error produced while resolving a settings document.
var ErrConfig = errors.New("invalid settings document")

// MalformedDocumentError is returned when a document (raw or rendered) is not a YAML/JSON mapping.
type MalformedDocumentError struct {
	Stage string
	err   error
}

func (m MalformedDocumentError) Error() string {
	return fmt.Sprintf("%s document is malformed: %v", m.Stage, m.err)
}

func (m MalformedDocumentError) Unwrap() error {
	return m.err
}

func (m MalformedDocumentError) Is(target error) bool {
	return target == ErrConfig
}

type TemplateRenderError struct {
	err error
}

func (t TemplateRenderError) Error() string {
	return fmt.Sprintf("failed to render the settings template: %v", t.err)
}

func (t TemplateRenderError) Unwrap() error {
	return t.err
}

func (t TemplateRenderError) Is(target error) bool {
	return target == ErrConfig
}

type FieldError struct {
	// Path is the dotted location of the offending field, e.g. `step_raw_to_bronze.target.options`.
	Path    string
	Message string
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s: %s", f.Path, f.Message)
}

// ValidationError enumerates every offending field of a document.
type ValidationError struct {
	Fields []FieldError
}

func (v ValidationError) Error() string {
	parts := make([]string, len(v.Fields))
	for i, field := range v.Fields {
		parts[i] = field.String()
	}

	return fmt.Sprintf("settings validation failed: %s", strings.Join(parts, "; "))
}

func (v ValidationError) Is(target error) bool {
	return target == ErrConfig
}

// HasField returns true if any field error is reported at [path].
func (v ValidationError) HasField(path string) bool {
	for _, field := range v.Fields {
		if field.Path == path {
			return true
		}
	}

	return false
}
