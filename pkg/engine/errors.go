package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for reporting and recovery.
type ErrorClass string

const (
	// ErrorClassCancelled indicates the user declined a confirmation or selection.
	// Never reported as a crash.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassPrerequisite indicates a required tool, extension or folder is missing.
	// The current phase aborts; the project remains usable.
	ErrorClassPrerequisite ErrorClass = "prerequisite"

	// ErrorClassInvariant indicates a programmer or configuration error, such as a
	// missing board descriptor or project folder. Terminates the current command.
	ErrorClassInvariant ErrorClass = "invariant"

	// ErrorClassOperational indicates a component operation failed.
	ErrorClassOperational ErrorClass = "operational"

	// ErrorClassValidation indicates invalid input data (settings, descriptors, catalogs).
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassTransport indicates a failure talking to a remote target.
	ErrorClassTransport ErrorClass = "transport"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message shown to the user.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Component is the name of the component that caused the error, if applicable.
	Component string `json:"component,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	if e.Component != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (component=%s, operation=%s)", e.Class, msg, e.Component, e.Operation)
	}
	if e.Component != "" {
		return fmt.Sprintf("[%s] %s (component=%s)", e.Class, msg, e.Component)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// ErrCancelled matches any cancellation error with errors.Is.
var ErrCancelled = &EngineError{Class: ErrorClassCancelled, Code: ErrCodeCancelled, Message: "operation cancelled"}

// NewCancelOperationError creates the distinguished cancellation signal.
func NewCancelOperationError(message string) *EngineError {
	return &EngineError{
		Class:   ErrorClassCancelled,
		Code:    ErrCodeCancelled,
		Message: message,
	}
}

// NewPrerequisiteError creates a new prerequisite error.
func NewPrerequisiteError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPrerequisite,
		Code:    ErrCodeNotFound,
		Message: message,
		Err:     err,
	}
}

// NewInvariantError creates a new invariant error.
func NewInvariantError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassInvariant,
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewOperationalError creates a new operational error.
func NewOperationalError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassOperational,
		Code:    ErrCodeOperationFailed,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Code:    ErrCodeValidation,
		Message: message,
		Err:     err,
	}
}

// NewTransportError creates a new transport error.
func NewTransportError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransport,
		Code:    ErrCodeTransport,
		Message: message,
		Err:     err,
	}
}

// WithComponent adds component context to an error.
func (e *EngineError) WithComponent(name string) *EngineError {
	e.Component = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// UserMessage returns the message meant for the notification channel,
// without the class prefix and context suffix.
func UserMessage(err error) string {
	var e *EngineError
	if errors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
		}
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func classOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsCancelled returns true if the error is a cancellation signal.
func IsCancelled(err error) bool {
	return classOf(err) == ErrorClassCancelled
}

// IsPrerequisite returns true if the error is classified as a missing prerequisite.
func IsPrerequisite(err error) bool {
	return classOf(err) == ErrorClassPrerequisite
}

// IsInvariant returns true if the error is classified as an invariant violation.
func IsInvariant(err error) bool {
	return classOf(err) == ErrorClassInvariant
}

// IsOperational returns true if the error is classified as operational.
func IsOperational(err error) bool {
	return classOf(err) == ErrorClassOperational
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	return classOf(err) == ErrorClassValidation
}

// IsTransport returns true if the error is classified as a transport error.
func IsTransport(err error) bool {
	return classOf(err) == ErrorClassTransport
}

// Common error codes.
const (
	ErrCodeCancelled       = "CANCELLED"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeAlreadyExists   = "ALREADY_EXISTS"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeOperationFailed = "OPERATION_FAILED"
	ErrCodeTransport       = "TRANSPORT_ERROR"
	ErrCodePolicyDenied    = "POLICY_DENIED"
	ErrCodeUnsupported     = "UNSUPPORTED"
)
