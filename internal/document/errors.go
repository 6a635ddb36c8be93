package document

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnreadablePDF      Kind = "UnreadablePDF"
	KindPasswordProtected  Kind = "PasswordProtected"
	KindInvalidUpload      Kind = "InvalidUpload"
	KindInvalidSpeakerName Kind = "InvalidSpeakerName"
	KindInvalidKeyMessages Kind = "InvalidKeyMessages"
	KindEmptyKeyMessages   Kind = "EmptyKeyMessages"
)

// Error reports a rejected or unreadable input.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) ErrorKind() string { return string(e.Kind) }

// IsKind reports whether err is a document error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func invalid(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
