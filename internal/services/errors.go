package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	KindInvalid ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
)

// ServiceError carries a classification the HTTP layer maps onto a status code.
type ServiceError struct {
	Kind ErrorKind
	Msg  string
}

func (e *ServiceError) Error() string { return e.Msg }

func NewInvalidError(msg string) error      { return &ServiceError{Kind: KindInvalid, Msg: msg} }
func NewNotFoundError(msg string) error     { return &ServiceError{Kind: KindNotFound, Msg: msg} }
func NewConflictError(msg string) error     { return &ServiceError{Kind: KindConflict, Msg: msg} }
func NewForbiddenError(msg string) error    { return &ServiceError{Kind: KindForbidden, Msg: msg} }
func NewUnauthorizedError(msg string) error { return &ServiceError{Kind: KindUnauthorized, Msg: msg} }

// KindOf reports the kind of a ServiceError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// FieldError names one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected field of a submission so nothing is persisted
// until all forms of a stage are valid.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e as an error when it holds at least one field, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	// ErrUnknownStimulus means a submitted or configured stimulus is not in the catalog.
	ErrUnknownStimulus = errors.New("stimulus not in catalog")
	// ErrTrialNotFound means a confidence rating has no matching classification trial.
	ErrTrialNotFound = errors.New("no trial matches confidence rating")
	// ErrAlreadySubmitted means the session has already recorded the stage being written.
	ErrAlreadySubmitted = errors.New("stage already submitted")
	// ErrCaptchaFailed indicates the captcha provider rejected the token.
	ErrCaptchaFailed = errors.New("captcha verification failed")
)
