package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the canonical signal for authentication failure.
	// Callers must not report it again; the session guard already did.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServerBusy is returned once the transient-overload retry budget is spent.
	ErrServerBusy = errors.New("server is busy (429), please try again later")

	// ErrGatewayClosed settles calls still queued at teardown.
	ErrGatewayClosed = errors.New("gateway closed")
)

// RequestError is any other non-success response, or a body that could not be decoded.
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
	}
	return "request failed: " + e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// DisplayMessage returns the text shown to users for err.
func DisplayMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return err.Error()
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
