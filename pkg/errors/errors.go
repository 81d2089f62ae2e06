package errors

import (
	"fmt"
	"strings"
)

// ParseError represents a JSON or YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError is the single failure kind reported for malformed apps, schemas and pipelines.
// Problems holds the individual violations when several were detected in one pass.
type ValidationError struct {
	Field    string
	Message  string
	Problems []string
	Err      error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// NewValidationProblems constructs a ValidationError aggregating several violations.
func NewValidationProblems(field string, problems []string) error {
	return &ValidationError{
		Field:    field,
		Message:  strings.Join(problems, ". "),
		Problems: append([]string(nil), problems...),
	}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ResourceError reports a document that could not be fetched.
type ResourceError struct {
	URI     string
	Message string
	Err     error
}

// NewResourceError constructs a ResourceError for the given location.
func NewResourceError(uri, message string, err error) error {
	return &ResourceError{URI: uri, Message: message, Err: err}
}

func (e *ResourceError) Error() string {
	if e == nil {
		return ""
	}

	msg := fmt.Sprintf("unable to load %q", e.URI)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *ResourceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
