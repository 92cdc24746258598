package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request may succeed.
func (e *AppError) Retryable() bool {
	return e.Code == CodeConflict
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As extracts the *AppError from err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

const (
	CodeInvalidArgument   = "VAL_001"
	CodeInvalidAmount     = "VAL_002"
	CodeAccountExists     = "ACC_001"
	CodeAccountNotFound   = "ACC_002"
	CodeInsufficientFunds = "ACC_003"
	CodeConflict          = "ACC_004"
	CodeRateLimited       = "RATE_001"
	CodeInternal          = "SYS_001"
)

// ---- Validation (VAL) ----

func ErrInvalidArgument(message string, err error) *AppError {
	return Wrap(CodeInvalidArgument, message, http.StatusBadRequest, err)
}

func ErrInvalidAmount(err error) *AppError {
	return Wrap(CodeInvalidAmount, "Amount must be at least 0.01 with exactly two decimal places", http.StatusUnprocessableEntity, err)
}

// ---- Accounts (ACC) ----

func ErrAccountExists(id string, err error) *AppError {
	return Wrap(CodeAccountExists, fmt.Sprintf("Account %s already exists", id), http.StatusConflict, err)
}

func ErrAccountNotFound(id string, err error) *AppError {
	return Wrap(CodeAccountNotFound, fmt.Sprintf("Account %s not found", id), http.StatusNotFound, err)
}

func ErrInsufficientFunds(err error) *AppError {
	return Wrap(CodeInsufficientFunds, "Insufficient funds", http.StatusUnprocessableEntity, err)
}

func ErrConflict(err error) *AppError {
	return Wrap(CodeConflict, "Account was modified concurrently, retry the request", http.StatusConflict, err)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 error for malformed requests.
func Validation(message string) *AppError {
	return New(CodeInvalidArgument, message, http.StatusBadRequest)
}
