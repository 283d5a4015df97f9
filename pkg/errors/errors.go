// Package errors defines custom error types for Fakturo
package errors

import (
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// PreconditionError indicates a sync entry condition was not met
	// (offline, unauthenticated, already syncing)
	PreconditionError ErrorType = "precondition"
	// NetworkError indicates network-related issues
	NetworkError ErrorType = "network"
	// AuthError indicates authentication/authorization issues
	AuthError ErrorType = "auth"
	// StorageError indicates local store or state database issues
	StorageError ErrorType = "storage"
	// RemoteError indicates remote backend specific issues
	RemoteError ErrorType = "remote"
	// MergeError indicates reconciliation issues
	MergeError ErrorType = "merge"
	// ValidationError indicates input validation issues
	ValidationError ErrorType = "validation"
	// ConfigError indicates configuration issues
	ConfigError ErrorType = "config"
)

// FakturoError is the base error type for all Fakturo errors
type FakturoError struct {
	Type       ErrorType
	Message    string
	Err        error
	Retryable  bool
	StatusCode int
}

// Error implements the error interface
func (e *FakturoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *FakturoError) Unwrap() error {
	return e.Err
}

// IsRetryable returns whether the error is retryable
func (e *FakturoError) IsRetryable() bool {
	return e.Retryable
}

// New creates a new FakturoError
func New(errType ErrorType, message string, err error) *FakturoError {
	return &FakturoError{
		Type:      errType,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewRetryable creates a new retryable FakturoError
func NewRetryable(errType ErrorType, message string, err error) *FakturoError {
	return &FakturoError{
		Type:      errType,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// IsPreconditionError checks if the error is a precondition error
func IsPreconditionError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == PreconditionError
	}
	return false
}

// IsNetworkError checks if the error is a network error
func IsNetworkError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == NetworkError
	}
	return false
}

// IsAuthError checks if the error is an authentication error
func IsAuthError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == AuthError
	}
	return false
}

// IsStorageError checks if the error is a storage error
func IsStorageError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == StorageError
	}
	return false
}

// IsRemoteError checks if the error is a remote backend error
func IsRemoteError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == RemoteError
	}
	return false
}

// IsMergeError checks if the error is a merge error
func IsMergeError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == MergeError
	}
	return false
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == ValidationError
	}
	return false
}

// IsConfigError checks if the error is a configuration error
func IsConfigError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.Type == ConfigError
	}
	return false
}

// Constructor functions for each error type

// NewPreconditionError creates a new precondition error
func NewPreconditionError(message string, err error) *FakturoError {
	return New(PreconditionError, message, err)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, err error) *FakturoError {
	return NewRetryable(NetworkError, message, err)
}

// NewAuthError creates a new authentication error
func NewAuthError(message string, err error) *FakturoError {
	return New(AuthError, message, err)
}

// NewStorageError creates a new storage error
func NewStorageError(message string, err error) *FakturoError {
	return New(StorageError, message, err)
}

// NewRemoteError creates a new remote backend error
func NewRemoteError(message string, err error) *FakturoError {
	return NewRetryable(RemoteError, message, err)
}

// NewMergeError creates a new merge error
func NewMergeError(message string, err error) *FakturoError {
	return New(MergeError, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *FakturoError {
	return New(ValidationError, message, err)
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, err error) *FakturoError {
	return New(ConfigError, message, err)
}

// IsNotFoundError checks if the error indicates a resource was not found
func IsNotFoundError(err error) bool {
	if fe, ok := err.(*FakturoError); ok {
		return fe.StatusCode == 404
	}
	return false
}
