package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a CascadeError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *CascadeError {
	if err == nil {
		return nil
	}

	var ce *CascadeError
	if errors.As(err, &ce) {
		return &CascadeError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ce,
			Context:     ce.Context,
			Component:   ce.Component,
			Package:     ce.Package,
			FilePath:    ce.FilePath,
			Recoverable: ce.Recoverable,
		}
	}

	return &CascadeError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypePublish,
	}
}

// WrapPublish wraps a per-package failure; the run continues past it.
func WrapPublish(err error, code, message, pkg string) *CascadeError {
	ce := Wrap(err, ErrorTypePublish, code, message)
	if ce != nil {
		ce.Package = pkg
		ce.Recoverable = true
	}
	return ce
}

// WrapPlanning wraps an error that aborts planning.
func WrapPlanning(err error, code, message string) *CascadeError {
	ce := Wrap(err, ErrorTypePlanning, code, message)
	if ce != nil {
		ce.Recoverable = false
	}
	return ce
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *CascadeError {
	ce := Wrap(err, ErrorTypeIO, code, message)
	if ce != nil {
		ce.Recoverable = false
	}
	return ce
}

// WrapNetwork wraps an error as a network error
func WrapNetwork(err error, code, message string) *CascadeError {
	ce := Wrap(err, ErrorTypeNetwork, code, message)
	if ce != nil {
		ce.Recoverable = false
	}
	return ce
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *CascadeError {
	ce := Wrap(err, ErrorTypeConfig, code, message)
	if ce != nil {
		ce.Recoverable = false
	}
	return ce
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetErrorContext extracts context information from a CascadeError
func GetErrorContext(err error) map[string]interface{} {
	var ce *CascadeError
	if errors.As(err, &ce) {
		context := make(map[string]interface{})
		for k, v := range ce.Context {
			context[k] = v
		}
		if ce.Component != "" {
			context["component"] = ce.Component
		}
		if ce.Package != "" {
			context["package"] = ce.Package
		}
		if ce.FilePath != "" {
			context["file"] = ce.FilePath
		}
		context["type"] = string(ce.Type)
		context["code"] = ce.Code
		context["recoverable"] = ce.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}
