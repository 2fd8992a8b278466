package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
	ErrorCode() string
}

// Business rule codes
const (
	CodeParentNotContainer = "PARENT_NOT_CONTAINER"
	CodeFolderNotDeleted   = "FOLDER_NOT_DELETED"
)

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrBusinessRule   = errors.New("business rule violated")
	ErrCreationFailed = errors.New("creation failed")
	ErrStorage        = errors.New("storage failure")
	ErrUnauthorized   = errors.New("unauthorized")
)

type (
	// NotFoundError indicates the referenced node does not exist (or is soft-deleted
	// where the operation requires a live node)
	NotFoundError struct {
		Resource string
		ID       int64
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
		Field   string
	}

	// BusinessRuleError indicates a request that is well-formed but violates a
	// hierarchy rule
	BusinessRuleError struct {
		Code    string
		Message string
		Details map[string]any
	}

	// CreationFailedError signals that a freshly inserted row could not be read back
	CreationFailedError struct {
		ID int64
	}

	// StorageError wraps a driver failure with the operation and entity involved
	StorageError struct {
		Op     string
		Entity string
		Err    error
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

// NewNotFound returns a NotFoundError for a folder id
func NewNotFound(id int64) *NotFoundError {
	return &NotFoundError{Resource: "Folder", ID: id}
}

// NewValidation returns a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewStorageError wraps err with the failing operation
func NewStorageError(op, entity string, err error) *StorageError {
	return &StorageError{Op: op, Entity: entity, Err: err}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%d' not found", e.Resource, e.ID)
}
func (e *ValidationError) Error() string     { return e.Message }
func (e *BusinessRuleError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string   { return e.Message }
func (e *CreationFailedError) Error() string {
	return fmt.Sprintf("folder %d was created but could not be read back", e.ID)
}
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int       { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int     { return http.StatusBadRequest }
func (e *BusinessRuleError) StatusCode() int   { return http.StatusUnprocessableEntity }
func (e *UnauthorizedError) StatusCode() int   { return http.StatusUnauthorized }
func (e *CreationFailedError) StatusCode() int { return http.StatusInternalServerError }
func (e *StorageError) StatusCode() int        { return http.StatusInternalServerError }

// ErrorCode implementations (HTTPError interface)
func (e *NotFoundError) ErrorCode() string       { return "NOT_FOUND" }
func (e *ValidationError) ErrorCode() string     { return "VALIDATION_ERROR" }
func (e *BusinessRuleError) ErrorCode() string   { return e.Code }
func (e *UnauthorizedError) ErrorCode() string   { return "UNAUTHORIZED" }
func (e *CreationFailedError) ErrorCode() string { return "FOLDER_CREATION_FAILED" }
func (e *StorageError) ErrorCode() string        { return "DATABASE_ERROR" }

// Is allows errors.Is() to match the typed errors against their sentinels
func (e *NotFoundError) Is(target error) bool       { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool     { return target == ErrValidation }
func (e *BusinessRuleError) Is(target error) bool   { return target == ErrBusinessRule }
func (e *CreationFailedError) Is(target error) bool { return target == ErrCreationFailed }
func (e *StorageError) Is(target error) bool        { return target == ErrStorage }
func (e *UnauthorizedError) Is(target error) bool   { return target == ErrUnauthorized }

// Unwrap exposes the underlying driver error
func (e *StorageError) Unwrap() error { return e.Err }

// ParentNotContainer builds the error returned when a child is created under a leaf
func ParentNotContainer(parentID int64) *BusinessRuleError {
	return &BusinessRuleError{
		Code:    CodeParentNotContainer,
		Message: "Parent must be a folder",
		Details: map[string]any{"parentId": parentID},
	}
}

// FolderNotDeleted builds the error returned when restoring a live node
func FolderNotDeleted(id int64) *BusinessRuleError {
	return &BusinessRuleError{
		Code:    CodeFolderNotDeleted,
		Message: "Folder is not deleted",
		Details: map[string]any{"id": id},
	}
}
