package engine

import (
	"sync"
	"time"

	"github.com/Veraticus/contaflow/internal/model"
)

// Accumulator collects company results as they finish. Merge is the only
// mutation and each company is merged at most once.
type Accumulator struct {
	results []model.CompanyResult
	done    []bool
	mu      sync.Mutex
}

// NewAccumulator creates an accumulator with one slot per company, in
// configured order.
func NewAccumulator(companies []model.CompanyProfile) *Accumulator {
	results := make([]model.CompanyResult, len(companies))
	for i, c := range companies {
		results[i] = model.CompanyResult{
			Company: c,
			Summary: model.CompanySummary{Company: c.ID, Status: model.StatusIncomplete},
		}
	}
	return &Accumulator{results: results, done: make([]bool, len(companies))}
}

// Merge stores the result for the company at index. It reports false when
// the slot was already filled or index is out of range.
func (a *Accumulator) Merge(index int, result model.CompanyResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= len(a.results) || a.done[index] {
		return false
	}
	a.results[index] = result
	a.done[index] = true
	return true
}

// Completed returns how many companies have been merged.
func (a *Accumulator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, d := range a.done {
		if d {
			n++
		}
	}
	return n
}

// Report builds the run report. Companies never merged are reported as
// canceled.
func (a *Accumulator) Report(runID string, period model.Period, started time.Time, elapsed time.Duration) *model.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := &model.RunReport{
		Companies: make([]model.CompanyResult, len(a.results)),
		Summary: model.RunSummary{
			RunID:     runID,
			Period:    period,
			StartedAt: started,
			Elapsed:   elapsed,
			Companies: make([]model.CompanySummary, 0, len(a.results)),
		},
	}

	for i, res := range a.results {
		if !a.done[i] {
			res.Failure = &model.Failure{
				Company: res.Company.ID,
				Kind:    model.FailureCanceled,
				Detail:  "run ended before the company started",
			}
		}
		report.Companies[i] = res
		report.Summary.Companies = append(report.Summary.Companies, res.Summary)
		report.Summary.Totals.Add(res.Summary)
		if res.Failure != nil {
			report.Summary.Failures = append(report.Summary.Failures, *res.Failure)
		}
	}
	return report
}
