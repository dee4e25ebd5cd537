package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeBusiness     Code = "BUSINESS_ERROR"
	CodeNetwork      Code = "NETWORK_ERROR"
	CodePrecondition Code = "PRECONDITION_FAILED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Status sentinels used when no HTTP response was received.
const (
	StatusNetwork = 0
	StatusUnknown = -1
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
	// Programming marks failures caused by a missing caller step rather than the runtime.
	Programming bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeUnauthorized: {
		Retryable:     false,
		PublicMessage: "Session expired. Please login again.",
	},
	CodeForbidden: {
		Retryable:     false,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		Retryable:     false,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		Retryable:     false,
		PublicMessage: "conflict detected",
	},
	CodeBusiness: {
		Retryable:     false,
		PublicMessage: "An error occurred",
	},
	CodeNetwork: {
		Retryable:     true,
		PublicMessage: "Network error - please check your connection",
	},
	CodePrecondition: {
		Retryable:     false,
		PublicMessage: "required step missing",
		Programming:   true,
	},
	CodeInternal: {
		Retryable:     false,
		PublicMessage: "Unknown error occurred",
	},
	CodeDependency: {
		Retryable:     true,
		PublicMessage: "dependency unavailable",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// CodeForStatus classifies a response status into the error taxonomy.
func CodeForStatus(status int) Code {
	switch {
	case status == StatusNetwork:
		return CodeNetwork
	case status < 0:
		return CodeInternal
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status >= 500:
		return CodeDependency
	default:
		return CodeBusiness
	}
}

type Error struct {
	code    Code
	status  int
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, status: StatusUnknown, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, status: StatusUnknown, message: message, cause: err}
}

// FromStatus builds an error for a failed round trip with the given status.
func FromStatus(status int, message string) *Error {
	if message == "" {
		message = MetadataFor(CodeForStatus(status)).PublicMessage
	}
	return &Error{code: CodeForStatus(status), status: status, message: message}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Status is the HTTP status, StatusNetwork when no response arrived, or StatusUnknown.
func (e *Error) Status() int {
	if e == nil {
		return StatusUnknown
	}
	return e.status
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) WithStatus(status int) *Error {
	if e == nil {
		return nil
	}
	e.status = status
	return e
}

func (e *Error) WithCause(err error) *Error {
	if e == nil {
		return nil
	}
	e.cause = err
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// StatusOf extracts the status of a typed error, StatusUnknown otherwise.
func StatusOf(err error) int {
	if typed := As(err); typed != nil {
		return typed.Status()
	}
	return StatusUnknown
}

// IsPrecondition reports a programming-error-class failure.
func IsPrecondition(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.Code()).Programming
}

// MessageOf returns the user facing message of err, or fallback when it has none.
func MessageOf(err error, fallback string) string {
	if typed := As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	if err != nil && As(err) == nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
