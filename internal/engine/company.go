package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/loader"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/Veraticus/contaflow/internal/reconcile"
)

// processCompany runs the full pipeline for one company. It returns either a
// complete classification set or a failure with no classifications.
func (e *Engine) processCompany(ctx context.Context, company model.CompanyProfile, period model.Period) model.CompanyResult {
	start := time.Now()
	logger := common.CompanyLogger(company.ID)

	fail := func(dir string, err error) model.CompanyResult {
		kind := failureKind(ctx, err)
		logger.Error("Company reconciliation failed", "kind", kind, "error", err)
		return failed(company, dir, kind, err, time.Since(start))
	}

	if err := company.Validate(); err != nil {
		return fail("", err)
	}

	dir, err := e.resolver.Resolve(company, period)
	if err != nil {
		return fail("", err)
	}
	logger.Debug("Resolved record directory", "dir", dir)

	sheetSources, err := e.provider.SpreadsheetSources(ctx, company, period)
	if err != nil {
		return fail(dir, err)
	}
	authSources, err := e.provider.AuthoritativeSources(ctx, company, dir)
	if err != nil {
		return fail(dir, err)
	}

	sheetRaw, sheetBad, err := loadAll(ctx, company, sheetSources)
	if err != nil {
		return fail(dir, err)
	}
	authRaw, authBad, err := loadAll(ctx, company, authSources)
	if err != nil {
		return fail(dir, err)
	}

	sheetRecords, sheetRejected := loader.NormalizeAll(sheetRaw, loader.NormalizerFor(model.OriginSpreadsheet, company))
	authRecords, authRejected := loader.NormalizeAll(authRaw, loader.NormalizerFor(model.OriginAuthoritative, company))

	rejections := make([]model.Rejection, 0, len(sheetBad)+len(authBad)+len(sheetRejected)+len(authRejected))
	rejections = append(rejections, sheetBad...)
	rejections = append(rejections, sheetRejected...)
	rejections = append(rejections, authBad...)
	rejections = append(rejections, authRejected...)
	for _, r := range rejections {
		logger.Warn("Rejected malformed record",
			"origin", r.Origin,
			"position", r.Position.String(),
			"detail", r.Detail)
	}

	res := reconcile.Reconcile(company, period, sheetRecords, authRecords, e.opts.Policy)
	for _, amb := range res.Ambiguous {
		logger.Warn("Ambiguous match sent to manual review", "key", amb.Key, "records", amb.Count)
	}

	summary := model.CompanySummary{
		Company:      company.ID,
		Status:       model.StatusComplete,
		Counts:       res.Counts,
		Loaded:       len(sheetRaw) + len(authRaw) + len(sheetBad) + len(authBad),
		Rejected:     len(rejections),
		Duplicates:   res.Duplicates,
		OutOfPeriod:  res.OutOfPeriod,
		MatchedPairs: res.MatchedPairs,
		Elapsed:      time.Since(start),
	}

	logger.Info("Company reconciled",
		"dir", dir,
		"spreadsheet_records", len(sheetRecords),
		"authoritative_records", len(authRecords),
		"matched", summary.Counts.Matched,
		"unmatched", summary.Counts.Unmatched,
		"manual_review", summary.Counts.ManualReview,
		"out_of_period", summary.OutOfPeriod,
		"duplicates", summary.Duplicates,
		"rejected", summary.Rejected,
		"elapsed", summary.Elapsed)

	return model.CompanyResult{
		Company:    company,
		Dir:        dir,
		Summary:    summary,
		Results:    res.Results,
		Rejections: rejections,
	}
}

// loadAll reads every source. A source that is malformed as a whole (one bad
// invoice file) becomes a single rejection; any other error fails the company.
func loadAll(ctx context.Context, company model.CompanyProfile, sources []loader.Source) ([]model.SourceRecord, []model.Rejection, error) {
	var records []model.SourceRecord
	var rejections []model.Rejection
	for _, src := range sources {
		recs, err := src.Load(ctx, company)
		if errors.Is(err, common.ErrMalformedRecord) {
			rejections = append(rejections, model.Rejection{
				Position: model.Position{Source: src.Name(), Index: 1},
				Origin:   src.Origin(),
				Detail:   err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		records = append(records, recs...)
	}
	return records, rejections, nil
}

func failed(company model.CompanyProfile, dir string, kind model.FailureKind, err error, elapsed time.Duration) model.CompanyResult {
	return model.CompanyResult{
		Company: company,
		Dir:     dir,
		Failure: &model.Failure{Company: company.ID, Kind: kind, Detail: err.Error()},
		Summary: model.CompanySummary{
			Company: company.ID,
			Status:  model.StatusIncomplete,
			Elapsed: elapsed,
		},
	}
}

func failureKind(ctx context.Context, err error) model.FailureKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return model.FailureCanceled
	case errors.Is(err, common.ErrPathNotFound):
		return model.FailurePathNotFound
	case errors.Is(err, common.ErrInvalidConfig):
		return model.FailureConfiguration
	default:
		return model.FailureSourceUnreadable
	}
}
