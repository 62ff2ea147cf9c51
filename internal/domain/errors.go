package domain

import (
	"errors"
	"fmt"
	"time"
)

// PipelineError represents a standardized error surfaced to callers.
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for the pipeline failure taxonomy. The first two are fatal to
// the request; the latter two are recovered locally (sub-profile omitted,
// region dropped) and never surface as request failures.
const (
	ErrInputInvalid         = "INPUT_INVALID"
	ErrInferenceUnavailable = "INFERENCE_UNAVAILABLE"
	ErrDegenerateProfile    = "DEGENERATE_PROFILE"
	ErrRegionSamplingOOB    = "REGION_SAMPLING_OOB"
	ErrHistoryStore         = "HISTORY_STORE_ERROR"
	ErrInternalServer       = "INTERNAL_SERVER_ERROR"
)

// NewPipelineError creates a new PipelineError with timestamp.
func NewPipelineError(code, message, details, requestID string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ErrorCode extracts the pipeline error code from err, unwrapping as needed.
// Returns ErrInternalServer for errors outside the taxonomy.
func ErrorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrInternalServer
}

// IsCode reports whether err carries the given pipeline error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// InputInvalid builds the error for an unreadable or unsupported image.
// The request is rejected before the pipeline runs; no partial findings.
func InputInvalid(details string) *PipelineError {
	return NewPipelineError(ErrInputInvalid, "unable to read image input", details, "")
}

// InferenceUnavailable builds the fatal error for a missing classifier or a
// failed inference call. The diagnostic carries expected vs actual state so
// callers can render a useful message; the score is never silently defaulted.
func InferenceUnavailable(expected, actual string) *PipelineError {
	return NewPipelineError(
		ErrInferenceUnavailable,
		"classifier inference unavailable",
		fmt.Sprintf("expected: %s; found: %s", expected, actual),
		"",
	)
}
