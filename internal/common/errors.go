// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Reconciliation errors.
	ErrPathNotFound     = errors.New("path not found")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrAmbiguousMatch   = errors.New("ambiguous match")
	ErrSourceUnreadable = errors.New("source unreadable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PathNotFoundError reports a company directory that is missing or unreadable.
type PathNotFoundError struct {
	Err     error
	Company string
	Path    string
}

func (e *PathNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("company %s: path %s not found: %v", e.Company, e.Path, e.Err)
	}
	return fmt.Sprintf("company %s: path %s not found", e.Company, e.Path)
}

func (e *PathNotFoundError) Unwrap() error {
	return e.Err
}

// Is matches ErrPathNotFound.
func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// MalformedRecordError reports a single record that failed normalization.
type MalformedRecordError struct {
	Err      error
	Position string
	Field    string
	Value    string
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("record %s: field %s", e.Position, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// ConfigurationError reports an unusable setting. An empty Company means the
// problem affects the whole run.
type ConfigurationError struct {
	Company string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Company != "" {
		return fmt.Sprintf("invalid configuration for company %s: %s: %s", e.Company, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// AmbiguousMatchError reports a match key shared by more than one record
// after duplicate resolution. It is downgraded to a manual-review
// classification and never aborts a run.
type AmbiguousMatchError struct {
	Key   string
	Count int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match for key %s: %d records", e.Key, e.Count)
}

// Is matches ErrAmbiguousMatch.
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
