package reconcile

import (
	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
)

// Result is the classified output for one company's record sets.
type Result struct {
	Results      []model.ClassificationResult
	Ambiguous    []*common.AmbiguousMatchError
	Counts       model.Counts
	Duplicates   int
	OutOfPeriod  int
	MatchedPairs int
}

// Reconcile runs filter, dedupe, match and classify over already
// normalized records. Every input record yields exactly one result.
func Reconcile(company model.CompanyProfile, period model.Period, spreadsheet, authoritative []model.CanonicalRecord, policy DuplicatePolicy) Result {
	var res Result

	sheetKept, sheetExcluded := FilterPeriod(spreadsheet, period)
	authKept, authExcluded := FilterPeriod(authoritative, period)
	for _, r := range sheetExcluded {
		res.Results = append(res.Results, ClassifyExcluded(r))
	}
	for _, r := range authExcluded {
		res.Results = append(res.Results, ClassifyExcluded(r))
	}
	res.OutOfPeriod = len(sheetExcluded) + len(authExcluded)

	sheetReps, sheetGroups := ResolveDuplicatesWith(sheetKept, policy)
	authReps, authGroups := ResolveDuplicatesWith(authKept, policy)
	for _, g := range append(sheetGroups, authGroups...) {
		for _, r := range g.Surplus {
			res.Results = append(res.Results, ClassifyDuplicate(r, g.Representative))
		}
	}
	res.Duplicates = SurplusCount(sheetGroups) + SurplusCount(authGroups)

	outcomes := NewMatcher(company).Match(sheetReps, authReps)
	for _, o := range outcomes {
		if o.HasPair() && o.Reason == model.ReasonMatched {
			res.MatchedPairs++
		}
		res.Results = append(res.Results, Classify(o)...)
	}
	res.Ambiguous = Ambiguities(outcomes)

	SortResults(res.Results)
	for _, r := range res.Results {
		res.Counts.Add(r.Bucket)
	}
	return res
}
