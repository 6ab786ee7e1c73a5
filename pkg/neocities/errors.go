package neocities

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "authentication_failed"
	ErrorTypeOp       ErrorType = "operation_failed"
	ErrorTypeNetwork  ErrorType = "network_error"
	ErrorTypeInternal ErrorType = "internal_error"
)

// APIError carries the server-provided message verbatim; callers match on
// it to detect recoverable conditions.
type APIError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeAuth
}

func IsOpError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeOp
}

// ServerMessage extracts the server-provided message, or the plain error
// text for non-API failures.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
