package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies domain errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeIO            ErrorType = "io"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError is the error value returned by every package of this module
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]string
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewConfigurationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConfiguration, message, cause)
}

func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeNotFound, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

// WithContext attaches a diagnostic key/value pair and returns the same error
func (e *DomainError) WithContext(key, value string) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, e.Context[k])
		}
		sb.WriteString("]")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func IsConfigurationError(err error) bool { return hasType(err, ErrorTypeConfiguration) }
func IsValidationError(err error) bool    { return hasType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool      { return hasType(err, ErrorTypeNotFound) }
func IsIOError(err error) bool            { return hasType(err, ErrorTypeIO) }
func IsInternalError(err error) bool      { return hasType(err, ErrorTypeInternal) }

// hasType reports whether any DomainError in the chain has the given type
func hasType(err error, errorType ErrorType) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *DomainError:
		if e == nil {
			return false
		}
		if e.Type == errorType {
			return true
		}
		return hasType(e.Cause, errorType)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if hasType(inner, errorType) {
				return true
			}
		}
		return false
	default:
		return hasType(errors.Unwrap(err), errorType)
	}
}

// Is, As and New mirror the standard library so callers need a single errors import

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func New(text string) error {
	return errors.New(text)
}
