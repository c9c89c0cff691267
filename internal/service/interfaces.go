// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/contaflow/internal/model"
)

// RunRecord is a stored run header.
type RunRecord struct {
	StartedAt time.Time
	ID        string
	Period    model.Period
	Totals    model.Totals
	Elapsed   time.Duration
}

// CompanyRecord is a stored company summary.
type CompanyRecord struct {
	Dir     string
	Summary model.CompanySummary
}

// RunDetail is a stored run with its companies and failures.
type RunDetail struct {
	Companies []CompanyRecord
	Failures  []model.Failure
	RunRecord
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, report *model.RunReport) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	LatestRun(ctx context.Context) (*RunRecord, error)
	GetRun(ctx context.Context, id string) (*RunDetail, error)
	DeleteRun(ctx context.Context, id string) error

	// Classification operations. Empty company or bucket matches everything.
	GetClassifications(ctx context.Context, runID, company string, bucket model.Bucket) ([]model.Row, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
