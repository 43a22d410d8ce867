package propertygrid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind is the category of a GridError.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindDecode     ErrorKind = "decode"
	KindCatalog    ErrorKind = "catalog"
	KindConfig     ErrorKind = "config"
	KindNotFound   ErrorKind = "not_found"
)

// Error codes
const (
	ErrCodeTableNotFound    = "TABLE_NOT_FOUND"
	ErrCodeInvalidCatalog   = "INVALID_CATALOG"
	ErrCodeTransportFailed  = "TRANSPORT_FAILED"
	ErrCodeMalformedPayload = "MALFORMED_PAYLOAD"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidGrammar   = "INVALID_COLUMN_FILTER"
)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrMalformedResponse = errors.New("malformed response")
)

// GridError is the typed error returned across package boundaries.
type GridError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Cause   error     `json:"-"`
}

func (e *GridError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Kind, e.Code, e.Field, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, msg)
}

func (e *GridError) Unwrap() error {
	return e.Cause
}

// WithCause sets the wrapped error.
func (e *GridError) WithCause(cause error) *GridError {
	e.Cause = cause
	return e
}

// WithField adds field context.
func (e *GridError) WithField(field string) *GridError {
	e.Field = field
	return e
}

// NewGridError creates a GridError.
func NewGridError(kind ErrorKind, code, message string) *GridError {
	return &GridError{Kind: kind, Code: code, Message: message}
}

func newTableNotFoundError(table string) *GridError {
	return NewGridError(KindNotFound, ErrCodeTableNotFound, fmt.Sprintf("unknown table %q", table)).
		WithCause(ErrTableNotFound)
}

func newCatalogError(message string, cause error) *GridError {
	return NewGridError(KindCatalog, ErrCodeInvalidCatalog, message).WithCause(cause)
}

func newGrammarError(format string, args ...interface{}) *GridError {
	return NewGridError(KindDecode, ErrCodeInvalidGrammar, fmt.Sprintf(format, args...))
}

// ValidationError lists the fields that block a search, keyed by UI field key.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("[%s:%s] %s", KindValidation, ErrCodeValidationFailed, strings.Join(parts, "; "))
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
