package result

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is the coded failure every core operation resolves to. Code mirrors
// HTTP status semantics: transport and internal failures are 500, validation
// failures 400.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Errorf builds a coded error from a format string.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Normalize converts any error into a *Error. Coded errors pass through
// unchanged; everything else becomes a 500 with the most specific message
// available, falling back to a generic phrase naming the operation.
func Normalize(err error, op string) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("operation %s failed", op)
	}
	return &Error{Code: 500, Message: msg}
}

// Result is the uniform envelope rendered at the API and CLI boundaries.
// Exactly one of Data and Err is set.
type Result[T any] struct {
	Data *T     `json:"data"`
	Err  *Error `json:"error"`
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Data: &v}
}

// Fail wraps an error, normalizing it first.
func Fail[T any](err error, op string) Result[T] {
	return Result[T]{Err: Normalize(err, op)}
}

// Valid reports whether the envelope holds exactly one of data and error.
func (r Result[T]) Valid() bool {
	return (r.Data == nil) != (r.Err == nil)
}

// MarshalJSON keeps both fields present so consumers can branch on null.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	type alias struct {
		Data *T     `json:"data"`
		Err  *Error `json:"error"`
	}
	return json.Marshal(alias{Data: r.Data, Err: r.Err})
}
