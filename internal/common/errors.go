package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation for malformed input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCredential for missing or rejected API credentials
	ErrorTypeCredential ErrorType = "credential"
	// ErrorTypeHandshake for agent injection/liveness failures
	ErrorTypeHandshake ErrorType = "handshake"
	// ErrorTypeExtraction for page content extraction failures
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeAdapter for optional fact-check adapter failures
	ErrorTypeAdapter ErrorType = "adapter"
	// ErrorTypeAI for AI analysis failures
	ErrorTypeAI ErrorType = "ai"
	// ErrorTypeStorage for storage/persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeNetwork for network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeBridge for extension bridge transport errors
	ErrorTypeBridge ErrorType = "bridge"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// ScanError represents a structured error with context
type ScanError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *ScanError) WithCause(cause error) *ScanError {
	e.Cause = cause
	return e
}

// WithDetails sets the details text
func (e *ScanError) WithDetails(details string) *ScanError {
	e.Details = details
	return e
}

// NewError creates a new ScanError
func NewError(errorType ErrorType, code, message string) *ScanError {
	return &ScanError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *ScanError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *ScanError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewCredentialError creates a missing-credential error
func NewCredentialError(code, message string) *ScanError {
	return NewError(ErrorTypeCredential, code, message)
}

// NewHandshakeError creates an agent handshake error
func NewHandshakeError(code, message string) *ScanError {
	return NewError(ErrorTypeHandshake, code, message)
}

// NewExtractionError creates a content extraction error
func NewExtractionError(code, message string) *ScanError {
	return NewError(ErrorTypeExtraction, code, message)
}

// NewAdapterError creates a fact-check adapter error
func NewAdapterError(code, message string) *ScanError {
	return NewError(ErrorTypeAdapter, code, message)
}

// NewAIError creates an AI analysis error
func NewAIError(code, message string) *ScanError {
	return NewError(ErrorTypeAI, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *ScanError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewNetworkError creates a network error
func NewNetworkError(code, message string) *ScanError {
	return NewError(ErrorTypeNetwork, code, message)
}

// NewBridgeError creates an extension bridge error
func NewBridgeError(code, message string) *ScanError {
	return NewError(ErrorTypeBridge, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *ScanError {
	return NewError(ErrorTypeInternal, code, message)
}

// WrapError wraps an existing error with ScanError context
func WrapError(err error, errorType ErrorType, code, message string) *ScanError {
	return &ScanError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// ErrorTypeOf returns the type of the outermost ScanError in err's chain, or
// ErrorTypeInternal when there is none.
func ErrorTypeOf(err error) ErrorType {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Type
	}
	return ErrorTypeInternal
}

// UserMessage classifies err into the text shown to the user when an
// analysis fails.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *ScanError
	if errors.As(err, &se) {
		switch se.Type {
		case ErrorTypeCredential:
			if se.Details != "" {
				return se.Details
			}
			return "Analysis failed. Please check your API keys in the extension settings."
		case ErrorTypeHandshake:
			return "Failed to initialize analysis: " + se.Message
		case ErrorTypeExtraction:
			return se.Message
		case ErrorTypeNetwork:
			return "Analysis failed. Please check your internet connection."
		}
	}

	if isNetworkError(err) {
		return "Analysis failed. Please check your internet connection."
	}
	if strings.Contains(strings.ToLower(err.Error()), "api key") {
		return "Analysis failed. Please check your API keys in the extension settings."
	}
	return "Analysis failed. Please try again later."
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "network")
}
