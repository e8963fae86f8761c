// Package apperr holds the error taxonomy shared by the domain services:
// validation failures that block a write before any I/O, not-found and
// conflict results from storage, and partial failures where some side
// effects may already have committed.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError rejects input before any storage call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError is a conflict whose message is shown to the caller as-is.
// It matches ErrConflict under errors.Is.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StepError records one failed step of a multi-write operation.
type StepError struct {
	Step string
	Err  error
}

// PartialFailureError reports an operation where at least one step failed
// after another may have committed. Compensated is true when every committed
// step was successfully undone.
type PartialFailureError struct {
	Op          string
	Failed      []StepError
	Compensated bool
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Step, f.Err))
	}
	state := "not compensated"
	if e.Compensated {
		state = "compensated"
	}
	return fmt.Sprintf("%s partially failed (%s): %s", e.Op, state, strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// HTTPError maps a service error onto an echo error with a {message} body.
// Errors that fall outside the taxonomy become 500s.
func HTTPError(err error) *echo.HTTPError {
	var ve *ValidationError
	var pf *PartialFailureError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pf):
		return echo.NewHTTPError(http.StatusBadGateway, pf.Error())
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
