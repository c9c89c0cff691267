package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidRun    = errors.New("invalid run")
	ErrInvalidBucket = errors.New("invalid bucket")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateReport checks a run report before it is persisted.
func validateReport(report *model.RunReport) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if strings.TrimSpace(report.Summary.RunID) == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidRun)
	}
	if err := report.Summary.Period.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	if report.Summary.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidRun)
	}
	seen := make(map[string]bool, len(report.Companies))
	for i, c := range report.Companies {
		if c.Company.ID == "" {
			return fmt.Errorf("%w: company at index %d has no ID", ErrInvalidRun, i)
		}
		if seen[c.Company.ID] {
			return fmt.Errorf("%w: company %s appears twice", ErrInvalidRun, c.Company.ID)
		}
		seen[c.Company.ID] = true
	}
	return nil
}

// validateBucket accepts any bucket including excluded, or "" for all.
func validateBucket(b model.Bucket) error {
	switch b {
	case "", model.BucketMatched, model.BucketUnmatched, model.BucketManualReview, model.BucketExcluded:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidBucket, b)
	}
}
