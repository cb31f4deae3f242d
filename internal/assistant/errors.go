package assistant

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMissingField    = errors.New("missing field")
	ErrInvalidSelector = errors.New("invalid assistant type")
	ErrJobFailed       = errors.New("run failed")
	ErrJobTimeout      = errors.New("run timed out")
	ErrTransport       = errors.New("provider call failed")
)

// MissingFieldError names the request field that was empty or absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string { return "Missing " + e.Field }

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

type InvalidSelectorError struct {
	Selector string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("Invalid assistant type: %s", e.Selector)
}

func (e *InvalidSelectorError) Is(target error) bool { return target == ErrInvalidSelector }

type JobFailedError struct {
	JobID   string
	Detail  string
	Attempt int
}

func (e *JobFailedError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = "Unknown error"
	}
	return "Run failed: " + detail
}

func (e *JobFailedError) Is(target error) bool { return target == ErrJobFailed }

type JobTimeoutError struct {
	JobID      string
	Attempts   int
	LastStatus string
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("Timed out waiting for completion. Final status: %s", e.LastStatus)
}

func (e *JobTimeoutError) Is(target error) bool { return target == ErrJobTimeout }

// TransportError wraps a failed call to the provider itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: errors.WithStack(err)}
}

// IsClientError reports whether err was caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrInvalidSelector)
}
