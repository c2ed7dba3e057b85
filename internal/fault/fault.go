package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrUniqueViolation = errors.New("unique violation")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
)

// Fault classifies an error as caused by the request or by the server's own data.
type Fault struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), e.Message)
}

func (e *Fault) Unwrap() error {
	return e.Err
}

func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

func NewClientError(msg string, err error) error {
	return &Fault{Type: ErrClient, Message: msg, Err: err}
}

// NewInternalError marks a data-integrity failure: the request was well formed but the
// server's catalog or records cannot satisfy it.
func NewInternalError(msg string, err error) error {
	return &Fault{Type: ErrInternal, Message: msg, Err: err}
}

func IsClientError(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Type == ErrClient
	}
	return false
}

func IsInternalError(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Type == ErrInternal
	}
	return false
}
