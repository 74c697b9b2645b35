package services

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrTransientProvider = errors.New("transient provider error")
	ErrPermanentInput    = errors.New("permanent input error")
	ErrStorage           = errors.New("storage error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
)

// Kind is the coarse classification the retry policy and logs act on.
type Kind string

const (
	KindTransient         Kind = "transient"
	KindPermanent         Kind = "permanent"
	KindStorage           Kind = "storage"
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindConfiguration     Kind = "configuration"
	KindNotFound          Kind = "not_found"
	KindUnknown           Kind = "unknown"
)

// Error tags a failure with a marker plus the component and operation that
// produced it.
type Error struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Hint      string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	b.WriteString(": ")
	b.WriteString(buildDetail(e.Component, e.Operation, e.Message))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error that carries component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransientProvider
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// WithHint attaches an operator hint to a wrapped error. Non-service errors are
// returned untouched.
func WithHint(err error, hint string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		svcErr.Hint = strings.TrimSpace(hint)
	}
	return err
}

// Classify maps an error to its Kind. The hard wall-clock limit surfaces as a
// context deadline and is treated as transient.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPermanentInput):
		return KindPermanent
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransientProvider), errors.Is(err, context.DeadlineExceeded):
		// A storage call cut off by the job deadline is a timeout, not a
		// storage fault.
		return KindTransient
	case errors.Is(err, ErrStorage):
		return KindStorage
	default:
		return KindUnknown
	}
}

// ErrorDetails is the flattened view of a service error used by structured logs.
type ErrorDetails struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts logging details from err.
func Details(err error) ErrorDetails {
	details := ErrorDetails{Kind: Classify(err)}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Component = svcErr.Component
		details.Operation = svcErr.Operation
		details.Message = svcErr.Message
		details.Hint = svcErr.Hint
		details.Cause = svcErr.Err
	}
	if details.Message == "" && err != nil {
		details.Message = err.Error()
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component != "" {
		parts = append(parts, component)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
