package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeInvalidName      ErrorCode = "INVALID_NAME"

	ErrCodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeNotAuthorized    ErrorCode = "NOT_AUTHORIZED"
	ErrCodeNotAMember       ErrorCode = "NOT_A_MEMBER"

	ErrCodeProjectNotFound    ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeAssignmentNotFound ErrorCode = "ASSIGNMENT_NOT_FOUND"
	ErrCodeDuplicateEmail     ErrorCode = "DUPLICATE_EMAIL"

	ErrCodeUnknownColumn    ErrorCode = "UNKNOWN_COLUMN"
	ErrCodeTooFewColumns    ErrorCode = "TOO_FEW_COLUMNS"
	ErrCodeMalformedUpload  ErrorCode = "MALFORMED_UPLOAD"
	ErrCodePartialIngestion ErrorCode = "PARTIAL_INGESTION"

	ErrCodeGatewayFailure  ErrorCode = "GATEWAY_FAILURE"
	ErrCodeIdentityChanged ErrorCode = "IDENTITY_CHANGED"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so sentinels below work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy carrying cause; sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewGatewayFailure wraps a repository error. Read failures are retryable.
func NewGatewayFailure(op string, cause error, retryable bool) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeGatewayFailure,
		Message:    fmt.Sprintf("repository %s failed", op),
		Details:    map[string]interface{}{"operation": op, "retryable": retryable},
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewTooFewColumnsError reports how many more columns must be selected.
func NewTooFewColumnsError(needed, minimum int) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeTooFewColumns,
		Message:    fmt.Sprintf("select more than %d columns (%d more needed)", minimum, needed),
		Details:    map[string]int{"needed": needed, "minimum": minimum},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewUnknownColumnError(columns []string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeUnknownColumn,
		Message:    fmt.Sprintf("unknown column(s): %s", strings.Join(columns, ", ")),
		Details:    map[string][]string{"columns": columns},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewMalformedUploadError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeMalformedUpload,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

var (
	ErrNotAuthenticated = NewUnauthorizedError("caller is not authenticated", ErrCodeNotAuthenticated)
	ErrNotAuthorized    = NewForbiddenError("caller lacks the role required for this action", ErrCodeNotAuthorized)
	ErrNotAMember       = NewForbiddenError("caller is not a member of this project", ErrCodeNotAMember)

	ErrProjectNotFound    = NewNotFoundError("project not found", ErrCodeProjectNotFound)
	ErrUserNotFound       = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrAssignmentNotFound = NewNotFoundError("assignment not found", ErrCodeAssignmentNotFound)
	ErrDuplicateEmail     = NewConflictError("a user with this email already exists", ErrCodeDuplicateEmail)

	ErrUnknownColumn    = NewUnknownColumnError(nil)
	ErrTooFewColumns    = NewTooFewColumnsError(0, 0)
	ErrMalformedUpload  = NewMalformedUploadError("upload could not be parsed", nil)
	ErrPartialIngestion = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodePartialIngestion,
		Message:    "ingestion was only partially applied; project columns and rows are out of sync",
		StatusCode: http.StatusInternalServerError,
	}

	ErrGatewayFailure  = NewGatewayFailure("", nil, false)
	ErrIdentityChanged = &AppError{
		Type:       ErrorTypeConflict,
		Code:       ErrCodeIdentityChanged,
		Message:    "session identity changed while the request was in flight",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a gateway read failure worth retrying.
func IsRetryable(err error) bool {
	appErr, ok := IsAppError(err)
	if !ok || appErr.Code != ErrCodeGatewayFailure {
		return false
	}
	details, ok := appErr.Details.(map[string]interface{})
	if !ok {
		return false
	}
	retryable, _ := details["retryable"].(bool)
	return retryable
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
