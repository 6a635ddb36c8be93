package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// FailureKind is the normalized category of an adapter failure.
type FailureKind string

const (
	FailureInvalidRequest FailureKind = "InvalidRequest"
	FailureAuth           FailureKind = "AuthError"
	FailureRateLimited    FailureKind = "RateLimited"
	FailureTimeout        FailureKind = "Timeout"
	FailureServer         FailureKind = "ServerError"
	FailureUnknown        FailureKind = "UnknownError"
)

// Transient reports whether a retry may succeed.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureRateLimited, FailureTimeout, FailureServer:
		return true
	default:
		return false
	}
}

// KindForStatus maps an HTTP status from any vendor to a FailureKind.
func KindForStatus(status int) FailureKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return FailureTimeout
	case status >= 500:
		return FailureServer
	case status == http.StatusBadRequest, status == http.StatusNotFound,
		status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		return FailureInvalidRequest
	default:
		return FailureUnknown
	}
}

// isTimeout recognises deadline expiry from the context or the transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
