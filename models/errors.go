package models

import "fmt"

// ErrorKind classifies why a call to a remote service did not produce a result.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindAuth       ErrorKind = "auth"
	ErrKindQuota      ErrorKind = "quota"
	ErrKindNetwork    ErrorKind = "network"
	ErrKindMalformed  ErrorKind = "malformed"
	ErrKindBlocked    ErrorKind = "blocked"
	ErrKindUnknown    ErrorKind = "unknown"
)

// ServiceError is the error type returned by the chat and try-on adapters.
type ServiceError struct {
	Kind    ErrorKind
	Service string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Service, e.Kind)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in the UI. Validation messages are shown as-is.
func (e *ServiceError) UserMessage() string {
	if e.Kind == ErrKindValidation {
		return e.Message
	}
	return e.Error()
}
