package uploader

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run. Every anticipated failure maps to one of
// these; the CLI switches over them to print the user-facing message.
type Kind string

const (
	KindSourceNotFound       Kind = "source_not_found"
	KindCredentialMissing    Kind = "credential_missing"
	KindCredentialReadError  Kind = "credential_read_error"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindUploadConflict       Kind = "upload_conflict"
	KindUploadFailed         Kind = "upload_failed"
	KindReplaceFailed        Kind = "replace_failed"
	KindUnknown              Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the classification of err, or KindUnknown for anything
// that is not an *Error.
func KindOf(err error) Kind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return KindUnknown
}
