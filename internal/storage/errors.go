package storage

import "fmt"

// ============================================================================
// STORAGE ERROR CODES
// ============================================================================
// These constants mirror domain error codes to avoid circular imports.

const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
	codeNotFound = "not_found"
)

// ============================================================================
// STORAGE ERROR TYPE
// ============================================================================

// StorageError represents a storage-specific error with a code and message.
// It implements the domain.Error interface pattern for consistent HTTP status mapping.
type StorageError struct {
	Code    string
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *StorageError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *StorageError) ErrorMessage() string {
	return e.Message
}

// newStorageError creates a new storage error.
func newStorageError(code, message string) *StorageError {
	return &StorageError{Code: code, Message: message}
}

// ============================================================================
// STORAGE DOMAIN ERRORS
// ============================================================================

var (
	// ErrBucketRequired is returned when no bucket name is configured for
	// an S3-compatible storage provider.
	ErrBucketRequired = newStorageError(codeInvalid, "storage bucket name is required")
)

// ErrFileNotFound creates an error for when a file is not found.
func ErrFileNotFound(key string) error {
	return &StorageError{
		Code:    codeNotFound,
		Message: fmt.Sprintf("file not found: %s", key),
	}
}

// ErrUnknownProvider creates an error for unknown storage providers.
func ErrUnknownProvider(provider string) error {
	return &StorageError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("unknown storage provider: %s", provider),
	}
}
