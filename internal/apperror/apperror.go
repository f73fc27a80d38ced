package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	BadRequest    Code = "BAD_REQUEST"
	Unauthorized  Code = "UNAUTHORIZED"
	NotFound      Code = "NOT_FOUND"
	QuotaExceeded Code = "QUOTA_EXCEEDED"
	Internal      Code = "INTERNAL"
	Conflict      Code = "CONFLICT"
)

type AppError struct {
	code    Code
	message string
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case QuotaExceeded:
		return http.StatusTooManyRequests
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is an *AppError carrying code.
func Is(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.code == code
	}
	return false
}
