// Package todoist implements a stateless client for the Todoist REST API.
// This file defines the closed set of errors the client returns; callers
// switch on these values and never see a raw transport error.
package todoist

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the token is invalid or revoked.
	ErrUnauthorized = errors.New("todoist: invalid API token")

	// ErrForbidden means the token authenticates but lacks access.
	ErrForbidden = errors.New("todoist: access denied")

	// ErrUnavailable covers timeouts and transient network failures. The
	// caller may advise the user to retry.
	ErrUnavailable = errors.New("todoist: service unavailable")

	// ErrMalformedResponse means a 2xx response was missing required
	// fields or could not be decoded.
	ErrMalformedResponse = errors.New("todoist: malformed response")
)

// RemoteError is any other non-2xx status, with the code preserved for
// diagnostics.
type RemoteError struct {
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("todoist: API error: status %d", e.StatusCode)
}
