package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	// ErrConnection is the cause of every transport failure while talking to the backend.
	ErrConnection = errors.New("connection error")

	// ErrInFlight is returned when an operation is triggered again before the previous one completed.
	ErrInFlight = errors.New("an operation is already in progress, please wait")

	ErrKeyNotFound = errors.New("key not found")

	// ErrNotAuthenticated is returned by operations requiring a token and a user profile.
	ErrNotAuthenticated = errors.New("missing credentials, please log in again")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) > 0 {
		return err.Fields[0].Error
	}
	return ""
}

// First returns the message shown to users: one error at a time.
func (err ValidationError) First() string {
	return err.Error()
}

// RequestError is a request the backend answered with a non-2xx status.
type RequestError struct {
	Status  int
	Message string
}

func (err *RequestError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("request failed with status %d", err.Status)
	}
	return err.Message
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

// UserMessage maps err to the single line displayed to a user.
// fallback is used for server rejections that carry no message.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	switch cause := errors.Cause(err).(type) {
	case *ValidationError:
		return cause.First()
	case validator.ValidationErrors:
		if len(cause) > 0 {
			return cause[0].Error()
		}
	case *RequestError:
		if cause.Message != "" {
			return cause.Message
		}
		return fallback
	}
	if errors.Cause(err) == ErrConnection {
		return ErrConnection.Error()
	}
	return err.Error()
}
