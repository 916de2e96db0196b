package endure

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/endurehq/endure-go/internal/engineclient"
)

var (
	// ErrInvalidSignature reports a workflow function whose signature does
	// not match func(ctx *WorkflowContext, input I) (O, error).
	ErrInvalidSignature = errors.New("endure: invalid workflow signature")

	// ErrInvalidRetention reports a retention period outside [0, 30] days.
	ErrInvalidRetention = errors.New("endure: retention period must be between 0 and 30 days")

	// ErrDuplicateWorkflow reports a second registration of the same
	// workflow name within a service.
	ErrDuplicateWorkflow = errors.New("endure: workflow already registered")

	// ErrInvalidArgument reports an empty or malformed registration input.
	ErrInvalidArgument = errors.New("endure: invalid argument")
)

// Error is the canonical SDK error: an HTTP status code plus the JSON
// payload returned to the caller under "output".
type Error struct {
	StatusCode int
	Output     any
}

func (e *Error) Error() string {
	return fmt.Sprintf("endure: error %d: %v", e.StatusCode, e.Output)
}

// NewError builds an Error carrying an explanatory payload.
func NewError(statusCode int, output any) *Error {
	return &Error{StatusCode: statusCode, Output: output}
}

// ValueError marks a programmer contract violation inside an action or
// workflow. Value errors are never retried: they are logged FAILED once and
// surfaced to the caller as HTTP 400.
type ValueError struct {
	msg string
}

func (e *ValueError) Error() string { return e.msg }

// NewValueError builds a ValueError from a format string.
func NewValueError(format string, args ...any) *ValueError {
	return &ValueError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports a request input that could not be converted into
// the workflow's declared input type. It maps to HTTP 422.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("endure: validation error: %s", e.Details)
}

// ProtocolError reports an engine reply that violates the action protocol,
// e.g. a retryable acknowledgment without retry_at. Protocol errors are
// fatal for the action.
type ProtocolError struct {
	StatusCode int
	Detail     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("endure: protocol error (engine status %d): %s", e.StatusCode, e.Detail)
}

// isValidationError matches both SDK conversion failures and validator
// violations surfaced from user code.
func isValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// isNonRetryable reports whether an action error must bypass the retry loop:
// value and validation errors are contract violations, and an unreachable
// engine is the caller's call to handle.
func isNonRetryable(err error) bool {
	var vale *ValueError
	if errors.As(err, &vale) {
		return true
	}
	if isValidationError(err) {
		return true
	}
	var ue *engineclient.UnreachableError
	return errors.As(err, &ue)
}
