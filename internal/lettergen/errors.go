package lettergen

import (
	"errors"
	"fmt"
)

var (
	ErrMissingMetadata = errors.New("missing required case metadata")
	ErrEmptyAnalysis   = errors.New("complaint analysis is empty")
	ErrEmptyOutput     = errors.New("stage returned empty output")
	ErrOutputTooShort  = errors.New("stage output below minimum length")
	ErrTimeout         = errors.New("letter generation timed out")
	ErrCancelled       = errors.New("letter generation cancelled")
)

// GenerationError tags a failure with the stage that was running.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// CurrencyError reports £ amounts in the letter that were neither in the
// analysis nor computed from the charge-out rate.
type CurrencyError struct {
	Amounts []string
}

func (e *CurrencyError) Error() string {
	return fmt.Sprintf("letter contains unsupported amounts %v", e.Amounts)
}
