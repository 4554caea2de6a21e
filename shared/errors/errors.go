package errors

import (
	stderrors "errors"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

func New(message string, statusCode int) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Message: message, StatusCode: statusCode}
}

func BadRequest(message string) *ErrorWithStatusCode {
	return New(message, http.StatusBadRequest)
}

func Unauthorized(message string) *ErrorWithStatusCode {
	return New(message, http.StatusUnauthorized)
}

func NotFound(message string) *ErrorWithStatusCode {
	return New(message, http.StatusNotFound)
}

func Conflict(message string) *ErrorWithStatusCode {
	return New(message, http.StatusConflict)
}

// StatusCode returns the status carried by err, or 500 when err is not an
// ErrorWithStatusCode.
func StatusCode(err error) int {
	var e *ErrorWithStatusCode
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	var e *ErrorWithStatusCode
	return stderrors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

func IsConflict(err error) bool {
	var e *ErrorWithStatusCode
	return stderrors.As(err, &e) && e.StatusCode == http.StatusConflict
}
