package speech

import (
	"errors"
	"fmt"

	"github.com/nikhilbhutani/speechwriter/internal/llm"
)

// Kind classifies a use-case failure.
type Kind string

const (
	KindInvalidInput         Kind = "InvalidInput"
	KindInputTooLarge        Kind = "InputTooLarge"
	KindNoContentFound       Kind = "NoContentFound"
	KindExtractionFailed     Kind = "ExtractionFailed"
	KindGenerationFailed     Kind = "GenerationFailed"
	KindEmptyKeyMessages     Kind = "EmptyKeyMessages"
	KindNoProviderAvailable  Kind = "NoProviderAvailable"
	KindNoProviderConfigured Kind = "NoProviderConfigured"
	KindCancelled            Kind = "Cancelled"
)

type attributes struct {
	message string
	// retryable means resubmitting the same input may succeed.
	retryable bool
}

var kinds = map[Kind]attributes{
	KindInvalidInput:         {"invalid input", false},
	KindInputTooLarge:        {"transcript exceeds the processing limit", false},
	KindNoContentFound:       {"no prepared remarks found", false},
	KindExtractionFailed:     {"extraction failed", true},
	KindGenerationFailed:     {"generation failed", true},
	KindEmptyKeyMessages:     {"key messages are empty", false},
	KindNoProviderAvailable:  {"requested provider is not available", false},
	KindNoProviderConfigured: {"no provider is configured", false},
	KindCancelled:            {"cancelled", true},
}

// Sentinels for errors.Is.
var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrInputTooLarge        = &Error{Kind: KindInputTooLarge}
	ErrNoContentFound       = &Error{Kind: KindNoContentFound}
	ErrExtractionFailed     = &Error{Kind: KindExtractionFailed}
	ErrGenerationFailed     = &Error{Kind: KindGenerationFailed}
	ErrEmptyKeyMessages     = &Error{Kind: KindEmptyKeyMessages}
	ErrNoProviderAvailable  = &Error{Kind: KindNoProviderAvailable}
	ErrNoProviderConfigured = &Error{Kind: KindNoProviderConfigured}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// Error is returned by every Orchestrator use case.
type Error struct {
	Kind    Kind
	Message string
	// Attempts is the number of provider calls made before giving up.
	Attempts int
	// Failure is the last adapter failure, if any.
	Failure *llm.Failure
	Cause   error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kinds[e.Kind].message
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorKind exposes the kind to packages that only see an error value.
func (e *Error) ErrorKind() string { return string(e.Kind) }

func (e *Error) Retryable() bool { return kinds[e.Kind].retryable }

// KindOf returns the kind carried by err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
