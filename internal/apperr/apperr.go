// Package apperr defines the closed error taxonomy shared by the routing
// pipeline and the batch orchestrator, and the mapping from each code to
// its default HTTP status. Core packages return *Error for classifiable
// failures; any other error is reported as internal_error at the
// transport boundary, which is the only place that looks at HTTPStatus.
package apperr

import "fmt"

// Code is a stable, machine-checkable error identifier.
type Code string

const (
	CodeOutsideFranchise       Code = "outside_franchise"
	CodeNoFiberNode            Code = "no_fiber_node"
	CodeRoadSnapFailed         Code = "road_snap_failed"
	CodeRouteNotFound          Code = "route_not_found"
	CodeFiberNodeGeomMissing   Code = "fiber_node_geometry_missing"
	CodeValidationError        Code = "validation_error"
	CodeMalformedJSON          Code = "malformed_json"
	CodePayloadTooLarge        Code = "payload_too_large"
	CodeInvalidContentLength   Code = "invalid_content_length"
	CodeBatchTooLarge          Code = "batch_too_large"
	CodeServerBusy             Code = "server_busy"
	CodePersistenceError       Code = "persistence_error"
	CodeExecutorUnavailable    Code = "executor_unavailable"
	CodeJobNotFound            Code = "job_not_found"
	CodeJobNotReady            Code = "job_not_ready"
	CodeRateLimitExceeded      Code = "rate_limit_exceeded"
	CodeRequestTimeout         Code = "request_timeout"
	CodeInternalError          Code = "internal_error"
	CodeHealthCheckFailed      Code = "health_check_failed"
)

// defaultStatus maps each taxonomy code to its default HTTP status.
var defaultStatus = map[Code]int{
	CodeOutsideFranchise:     400,
	CodeNoFiberNode:          400,
	CodeRoadSnapFailed:       400,
	CodeRouteNotFound:        400,
	CodeFiberNodeGeomMissing: 500,
	CodeValidationError:      422,
	CodeMalformedJSON:        422,
	CodePayloadTooLarge:      413,
	CodeInvalidContentLength: 400,
	CodeBatchTooLarge:        413,
	CodeServerBusy:           429,
	CodePersistenceError:     503,
	CodeExecutorUnavailable:  503,
	CodeJobNotFound:          404,
	CodeJobNotReady:          409,
	CodeRateLimitExceeded:    429,
	CodeRequestTimeout:       504,
	CodeInternalError:        500,
	CodeHealthCheckFailed:    500,
}

// FieldError describes one failed validation rule on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the taxonomy-carrying error type every core package returns for
// classifiable failures. It implements the standard error interface so it
// composes with errors.Is/errors.As through the Code field.
type Error struct {
	Code    Code
	Message string
	Details []FieldError
}

func (e *Error) Error() string {
	if e.Code != "" {
		return string(e.Code) + ": " + e.Message
	}
	return e.Message
}

// HTTPStatus returns the default status code for this error's taxonomy
// entry, or 500 if the code is unrecognized.
func (e *Error) HTTPStatus() int {
	if status, ok := defaultStatus[e.Code]; ok {
		return status
	}
	return 500
}

// New constructs an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unclassified error as an internal_error, preserving the
// original message for logs without leaking internals to callers that only
// read Code.
func Internal(err error) *Error {
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// ValidationFailed constructs a validation_error carrying one FieldError
// per failed rule, for the request-shape failures enumerated per field.
func ValidationFailed(message string, details ...FieldError) *Error {
	return &Error{Code: CodeValidationError, Message: message, Details: details}
}
