package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so handlers can map them to responses.
type Kind string

const (
	KindInvalidInput        Kind = "InvalidInput"
	KindUnauthorized        Kind = "Unauthorized"
	KindForbidden           Kind = "Forbidden"
	KindInsufficientCredits Kind = "InsufficientCredits"
	KindNotFound            Kind = "NotFound"
	KindUploadFailed        Kind = "UploadFailed"
	KindPersistenceFailed   Kind = "PersistenceFailed"
	KindAnalysisFailed      Kind = "AnalysisFailed"
	KindGenerationFailed    Kind = "GenerationFailed"
	KindRetryFailed         Kind = "RetryFailed"
)

// Error carries a public message alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// PublicMessage is the text safe to show to callers.
func PublicMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "Internal server error"
}
