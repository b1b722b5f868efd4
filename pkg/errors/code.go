package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 17000-17099: Container runner errors
// 17100-17199: Runner service (HTTP) errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008
	Canceled            ErrorCode = 10009

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Container Runner Errors (17000-17099) ==========

	InvalidResource    ErrorCode = 17000
	SubprocessFailed   ErrorCode = 17001
	InspectParseFailed ErrorCode = 17002
	SecretStageFailed  ErrorCode = 17003
	DisposalFailed     ErrorCode = 17004

	// ========== Runner Service Errors (17100-17199) ==========

	ContainerNotTracked ErrorCode = 17100
	ContainerNotDone    ErrorCode = 17101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	Canceled:            "Operation canceled",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Runner
	InvalidResource:    "Invalid resource",
	SubprocessFailed:   "Container engine command failed",
	InspectParseFailed: "Unexpected container inspect output",
	SecretStageFailed:  "Failed to stage secrets",
	DisposalFailed:     "Failed to dispose staged secrets",

	// Runner service
	ContainerNotTracked: "Container is not tracked by this service",
	ContainerNotDone:    "Container is still running",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == ContainerNotTracked:
		return 404
	case c == ContainerNotDone:
		return 409
	case c == ServiceUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidResource:
		return 400
	case c == SubprocessFailed, c == InspectParseFailed:
		return 502
	default:
		return 500
	}
}
