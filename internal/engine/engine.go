// Package engine runs reconciliation across companies.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/loader"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/reconcile"
	"github.com/google/uuid"
)

// Resolver locates the authoritative record directory for a company.
type Resolver interface {
	Resolve(company model.CompanyProfile, period model.Period) (string, error)
}

// Options configures a reconciliation run.
type Options struct {
	// OnCompanyDone is called once per company, from the goroutine that
	// called Run, as soon as the company's result is merged.
	OnCompanyDone func(model.CompanyResult)
	Now           func() time.Time
	NewRunID      func() string
	Workers       int
	Policy        reconcile.DuplicatePolicy
}

// DefaultOptions returns the default run options.
func DefaultOptions() Options {
	return Options{
		Workers:  4,
		Policy:   reconcile.EarliestDateThenPosition,
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}
}

// Engine reconciles companies for a period.
type Engine struct {
	resolver Resolver
	provider loader.Provider
	opts     Options
}

// New creates an engine. Zero-valued options fall back to the defaults.
func New(resolver Resolver, provider loader.Provider, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = defaults.NewRunID
	}
	return &Engine{resolver: resolver, provider: provider, opts: opts}
}

// Run reconciles every company for period. Company failures are reported in
// the result and never abort siblings; only an invalid period or company list
// returns an error.
func (e *Engine) Run(ctx context.Context, companies []model.CompanyProfile, period model.Period) (*model.RunReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := validateCompanyList(companies); err != nil {
		return nil, err
	}

	started := e.opts.Now()
	runID := e.opts.NewRunID()

	slog.Info("Starting reconciliation run",
		"run_id", runID,
		"period", period.String(),
		"companies", len(companies),
		"workers", e.opts.Workers)

	acc := NewAccumulator(companies)
	e.processCompaniesParallel(ctx, companies, period, acc)

	report := acc.Report(runID, period, started, e.opts.Now().Sub(started))

	slog.Info("Reconciliation run finished",
		"run_id", runID,
		"matched", report.Summary.Totals.Counts.Matched,
		"unmatched", report.Summary.Totals.Counts.Unmatched,
		"manual_review", report.Summary.Totals.Counts.ManualReview,
		"excluded", report.Summary.Totals.Counts.Excluded,
		"incomplete", report.Summary.Totals.Incomplete,
		"elapsed", report.Summary.Elapsed)

	return report, nil
}

type companyJob struct {
	company model.CompanyProfile
	index   int
}

type companyOutput struct {
	result model.CompanyResult
	index  int
}

// processCompaniesParallel fans companies out to a bounded worker pool and
// merges each result into acc as it arrives.
func (e *Engine) processCompaniesParallel(ctx context.Context, companies []model.CompanyProfile, period model.Period, acc *Accumulator) {
	workChan := make(chan companyJob, len(companies))
	for i, c := range companies {
		workChan <- companyJob{index: i, company: c}
	}
	close(workChan)

	resultsChan := make(chan companyOutput, len(companies))

	workers := e.opts.Workers
	if workers > len(companies) {
		workers = len(companies)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			e.companyWorker(ctx, workerID, period, workChan, resultsChan)
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for out := range resultsChan {
		acc.Merge(out.index, out.result)
		if e.opts.OnCompanyDone != nil {
			e.opts.OnCompanyDone(out.result)
		}
	}
}

// companyWorker drains the work channel. Cancellation is checked before each
// company starts; jobs left after cancellation are reported as canceled.
func (e *Engine) companyWorker(ctx context.Context, workerID int, period model.Period, workChan <-chan companyJob, resultsChan chan<- companyOutput) {
	for job := range workChan {
		if err := ctx.Err(); err != nil {
			resultsChan <- companyOutput{
				index:  job.index,
				result: failed(job.company, "", model.FailureCanceled, err, 0),
			}
			continue
		}

		slog.Debug("worker starting company", "worker_id", workerID, "company", job.company.ID)
		resultsChan <- companyOutput{index: job.index, result: e.processCompany(ctx, job.company, period)}
	}
}

func validateCompanyList(companies []model.CompanyProfile) error {
	if len(companies) == 0 {
		return &common.ConfigurationError{Field: "companies", Reason: "no companies to reconcile"}
	}
	seen := make(map[string]bool, len(companies))
	for i, c := range companies {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return &common.ConfigurationError{
				Field:  fmt.Sprintf("companies[%d].id", i),
				Reason: "company identifier is required",
			}
		}
		if seen[id] {
			return &common.ConfigurationError{
				Field:  fmt.Sprintf("companies[%d].id", i),
				Reason: fmt.Sprintf("duplicate company identifier %q", id),
			}
		}
		seen[id] = true
	}
	return nil
}
