package reconcile

import (
	"sort"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
)

// BucketFor maps a reason code to its bucket.
func BucketFor(reason model.Reason) model.Bucket {
	switch reason {
	case model.ReasonMatched:
		return model.BucketMatched
	case model.ReasonMissingInAuthoritative, model.ReasonMissingInSpreadsheet:
		return model.BucketUnmatched
	case model.ReasonOutOfPeriod:
		return model.BucketExcluded
	default:
		return model.BucketManualReview
	}
}

// Classify produces one result per record present in the outcome. An
// outcome above the review threshold is escalated to manual review unless
// it is already there; MatchReason keeps the underlying match state.
func Classify(o model.MatchOutcome) []model.ClassificationResult {
	bucket := BucketFor(o.Reason)
	reason := o.Reason
	if o.AboveThreshold && bucket != model.BucketManualReview {
		bucket = model.BucketManualReview
		reason = model.ReasonAboveThreshold
	}

	var delta *decimal.Decimal
	if o.HasPair() {
		d := o.Delta
		delta = &d
	}

	results := make([]model.ClassificationResult, 0, 2)
	if o.Spreadsheet != nil {
		results = append(results, model.ClassificationResult{
			Record:      *o.Spreadsheet,
			Paired:      o.Authoritative,
			Bucket:      bucket,
			Reason:      reason,
			MatchReason: o.Reason,
			Delta:       delta,
		})
	}
	if o.Authoritative != nil {
		results = append(results, model.ClassificationResult{
			Record:      *o.Authoritative,
			Paired:      o.Spreadsheet,
			Bucket:      bucket,
			Reason:      reason,
			MatchReason: o.Reason,
			Delta:       delta,
		})
	}
	return results
}

// ClassifyExcluded records a record dated outside the period.
func ClassifyExcluded(r model.CanonicalRecord) model.ClassificationResult {
	return model.ClassificationResult{
		Record:      r,
		Bucket:      model.BucketExcluded,
		Reason:      model.ReasonOutOfPeriod,
		MatchReason: model.ReasonOutOfPeriod,
	}
}

// ClassifyDuplicate routes a surplus record to manual review, pointing at
// the representative it duplicates.
func ClassifyDuplicate(r, representative model.CanonicalRecord) model.ClassificationResult {
	rep := representative
	return model.ClassificationResult{
		Record:      r,
		Paired:      &rep,
		Bucket:      model.BucketManualReview,
		Reason:      model.ReasonDuplicate,
		MatchReason: model.ReasonDuplicate,
	}
}

// SortResults orders results spreadsheet-first, then by original position.
func SortResults(results []model.ClassificationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Record, results[j].Record
		if a.Origin != b.Origin {
			return a.Origin == model.OriginSpreadsheet
		}
		return a.Position().Before(b.Position())
	})
}
