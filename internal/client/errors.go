package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
)

// StatusError is a non-2xx response from the answer service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("answer service returned %d %s", e.Code, http.StatusText(e.Code))
}

// Failure buckets a request error for user-facing messaging. The chat layer
// does not need the cause, only which kind of apology to render.
type Failure int

const (
	FailureUnknown Failure = iota
	FailureTimeout
	FailureConnect
	FailureServer
)

// Classify maps a request error to its Failure bucket.
func Classify(err error) Failure {
	if err == nil {
		return FailureUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return FailureConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureConnect
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return FailureServer
	}

	return FailureUnknown
}
