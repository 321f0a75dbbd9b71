package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureEmpty
	FailureTimeout
	FailureRateLimit
	FailureServer
	FailureClient
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureEmpty:
		return "empty"
	case FailureTimeout:
		return "timeout"
	case FailureRateLimit:
		return "rate_limit"
	case FailureServer:
		return "server"
	case FailureClient:
		return "client"
	default:
		return "unknown"
	}
}

// ProviderError is a non-success response from an external model API.
// It is never retried inside this module.
type ProviderError struct {
	Provider string
	Status   int
	Class    FailureClass
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider error (status %d, %s): %v", e.Provider, e.Status, e.Class, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether a caller-side retry could plausibly succeed.
func (e *ProviderError) Transient() bool {
	switch e.Class {
	case FailureTimeout, FailureRateLimit, FailureServer:
		return true
	default:
		return false
	}
}

// NewProviderError wraps err with a transport classification.
func NewProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	status := 0
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return &ProviderError{
		Provider: provider,
		Status:   status,
		Class:    classifyTransportError(err, status),
		Err:      err,
	}
}

func classifyTransportError(err error, status int) FailureClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	switch {
	case status == 429:
		return FailureRateLimit
	case status >= 500:
		return FailureServer
	case status >= 400:
		return FailureClient
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status code: 429") || strings.Contains(msg, "status=429") || strings.Contains(msg, "rate limit"):
		return FailureRateLimit
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "status=5") || strings.Contains(msg, "server error"):
		return FailureServer
	case strings.Contains(msg, "status code: 4") || strings.Contains(msg, "status=4"):
		return FailureClient
	default:
		return FailureServer
	}
}
