package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
	"github.com/joelkehle/hmrc-complaints/internal/llm"
	"github.com/joelkehle/hmrc-complaints/internal/store"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeTimeout     = "timeout"
	CodeUpstream    = "upstream"
	CodeInternal    = "internal"
)

type Error struct {
	Code      string
	Message   string
	Transient bool
	Status    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string) *Error {
	transient := code == CodeUnavailable || code == CodeTimeout
	return &Error{Code: code, Message: message, Transient: transient, Status: statusForCode(code)}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

func invalidJSON(err error) *Error {
	return newError(CodeValidation, "invalid json: "+err.Error())
}

func unavailable(what string) *Error {
	return newError(CodeUnavailable, what+" is not configured")
}

// asAPIError maps domain errors onto the envelope codes.
func asAPIError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var pe *llm.ProviderError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeNotFound, err.Error())
	case errors.Is(err, knowledge.ErrEmptyQuestion):
		return newError(CodeValidation, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeTimeout, err.Error())
	case errors.As(err, &pe):
		if pe.Class == llm.FailureTimeout {
			return newError(CodeTimeout, pe.Error())
		}
		ae := newError(CodeUpstream, pe.Error())
		ae.Transient = pe.Transient()
		return ae
	default:
		return newError(CodeInternal, err.Error())
	}
}

func writeError(w http.ResponseWriter, err error) {
	ae := asAPIError(err)
	writeJSON(w, ae.Status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":      ae.Code,
			"message":   ae.Message,
			"transient": ae.Transient,
		},
	})
}
