package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypePlanning   ErrorType = "planning"
	ErrorTypePublish    ErrorType = "publish"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// CascadeError is a structured error type with context.
type CascadeError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Package     string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.Package != "" {
		parts = append(parts, "package:"+e.Package)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CascadeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *CascadeError) Is(target error) bool {
	var t *CascadeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *CascadeError) WithContext(key string, value interface{}) *CascadeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPackage records the workspace package the error belongs to.
func (e *CascadeError) WithPackage(name string) *CascadeError {
	e.Package = name

	return e
}

// WithFile records the file the error belongs to.
func (e *CascadeError) WithFile(path string) *CascadeError {
	e.FilePath = path

	return e
}

// WithComponent adds component context.
func (e *CascadeError) WithComponent(component string) *CascadeError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *CascadeError {
	return &CascadeError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewPlanningError creates a planning error. Planning errors abort the run.
func NewPlanningError(code, message string, cause error) *CascadeError {
	return &CascadeError{
		Type:    ErrorTypePlanning,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPublishError creates a per-package publish error.
func NewPublishError(code, message string, cause error) *CascadeError {
	return &CascadeError{
		Type:        ErrorTypePublish,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *CascadeError {
	return &CascadeError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *CascadeError {
	return &CascadeError{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *CascadeError {
	return &CascadeError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CascadeError {
	return &CascadeError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable reports whether the run may continue after err.
func IsRecoverable(err error) bool {
	var ce *CascadeError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	return false
}

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var ce *CascadeError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.Cause
	}

	return false
}

// ErrorHandler provides centralized error reporting for the CLI.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its recoverability.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ce *CascadeError
	if !errors.As(err, &ce) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	if ce.Recoverable {
		h.logger.Warn(ctx, err, "Recoverable error occurred",
			"type", ce.Type,
			"code", ce.Code,
			"package", ce.Package)
		return
	}

	h.logger.Error(ctx, err, "Fatal error occurred",
		"type", ce.Type,
		"code", ce.Code,
		"component", ce.Component)
}

// Common error codes.
const (
	ErrCodeCyclicDependency    = "CYCLIC_DEPENDENCY"
	ErrCodeUnknownPackage      = "UNKNOWN_PACKAGE"
	ErrCodeDuplicatePackage    = "DUPLICATE_PACKAGE"
	ErrCodePlanNotFound        = "PLAN_NOT_FOUND"
	ErrCodePlanMalformed       = "PLAN_MALFORMED"
	ErrCodeInvalidVersion      = "INVALID_VERSION"
	ErrCodeMissingCredential   = "MISSING_CREDENTIAL"
	ErrCodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	ErrCodePublishFailed       = "PUBLISH_FAILED"
	ErrCodeManifestRewrite     = "MANIFEST_REWRITE"
	ErrCodeManifestInvalid     = "MANIFEST_INVALID"
	ErrCodeChangeDetection     = "CHANGE_DETECTION"
	ErrCodeScheduleOrder       = "SCHEDULE_ORDER"
	ErrCodeConfigInvalid       = "CONFIG_INVALID"
	ErrCodeCommandRejected     = "COMMAND_REJECTED"
	ErrCodeReportFailed        = "REPORT_FAILED"
	ErrCodeInternalError       = "INTERNAL"
)

// ErrCyclicDependency reports the packages left over when ordering made no progress.
func ErrCyclicDependency(remaining []string) *CascadeError {
	return NewPlanningError(
		ErrCodeCyclicDependency,
		"dependency cycle among: "+strings.Join(remaining, ", "),
		nil,
	).WithContext("packages", remaining)
}

// ErrUnknownPackage creates an unknown package error.
func ErrUnknownPackage(name string) *CascadeError {
	return NewValidationError(ErrCodeUnknownPackage, "unknown package: "+name).WithPackage(name)
}

// ErrPlanNotFound creates the error returned when no plan file exists.
func ErrPlanNotFound(path string) *CascadeError {
	return NewIOError(ErrCodePlanNotFound, "plan not found, run `cascade plan` first", nil).WithFile(path)
}

// ErrPublishFailed creates a per-package publish failure.
func ErrPublishFailed(name string, cause error) *CascadeError {
	return NewPublishError(ErrCodePublishFailed, "publish failed", cause).WithPackage(name)
}
