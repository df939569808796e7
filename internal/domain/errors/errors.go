package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrConflict         = errors.New("resource conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrAuthentication   = errors.New("authentication failed")
	ErrValidation       = errors.New("validation failed")
	ErrDataIntegrity    = errors.New("data integrity violation")
	ErrMintRequest      = errors.New("mint request failed")
	ErrMintNotFound     = errors.New("mint transaction not found")
	ErrTokenIDNotFound  = errors.New("token id not found")
	ErrExternalService  = errors.New("external service error")
	ErrUnhandledEvent   = errors.New("unhandled event type")
	ErrMetadataNotReady = errors.New("metadata not ready")
)

// Error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeAuthentication   = "AUTHENTICATION_FAILED"
	CodeUnhandledEvent   = "UNHANDLED_EVENT"
	CodeMetadataNotReady = "METADATA_NOT_READY"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// FromError maps a wrapped domain sentinel to the AppError rendered over HTTP.
// The message is the outermost error text so callers keep their context.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrAuthentication):
		return NewAppError(http.StatusBadRequest, CodeAuthentication, err.Error(), err)
	case errors.Is(err, ErrUnhandledEvent):
		return NewAppError(http.StatusBadRequest, CodeUnhandledEvent, err.Error(), err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDataIntegrity):
		return NewAppError(http.StatusBadRequest, CodeInvalidInput, err.Error(), err)
	case errors.Is(err, ErrMetadataNotReady):
		return NewAppError(http.StatusNotFound, CodeMetadataNotReady, "Metadata not ready", err)
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, err.Error(), err)
	case errors.Is(err, ErrConflict):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(http.StatusUnauthorized, CodeUnauthorized, err.Error(), err)
	case errors.Is(err, ErrExternalService):
		return NewAppError(http.StatusBadRequest, CodeExternalService, err.Error(), err)
	default:
		return InternalError(err)
	}
}
