package reconcile

import (
	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/shopspring/decimal"
)

// Matcher pairs spreadsheet records with authoritative records on
// (document, counterparty).
type Matcher struct {
	// Tolerance is the largest absolute delta still treated as a match.
	Tolerance decimal.Decimal
	// ReviewThreshold flags outcomes holding an amount at or above it.
	// Zero disables the check.
	ReviewThreshold decimal.Decimal
	// DetailLimit sends matched pairs whose authoritative record has more
	// detail lines than this to review. Zero disables the check.
	DetailLimit int
}

// NewMatcher builds a matcher from a company's settings.
func NewMatcher(company model.CompanyProfile) Matcher {
	return Matcher{
		Tolerance:       company.Tolerance,
		ReviewThreshold: company.ReviewThreshold,
		DetailLimit:     company.DetailLimit,
	}
}

// Match returns one outcome per pair or unpaired record: spreadsheet-driven
// outcomes in spreadsheet order, then authoritative-only outcomes in
// authoritative order. A key held by more than one record on either side is
// never paired; each of those records gets an ambiguous_match outcome.
func (m Matcher) Match(spreadsheet, authoritative []model.CanonicalRecord) []model.MatchOutcome {
	authIndex := make(map[model.Key][]int, len(authoritative))
	for i, r := range authoritative {
		k := r.MatchKey()
		authIndex[k] = append(authIndex[k], i)
	}
	sheetCount := make(map[model.Key]int, len(spreadsheet))
	for _, r := range spreadsheet {
		sheetCount[r.MatchKey()]++
	}

	outcomes := make([]model.MatchOutcome, 0, len(spreadsheet)+len(authoritative))
	paired := make(map[int]bool, len(authoritative))

	for i := range spreadsheet {
		s := &spreadsheet[i]
		k := s.MatchKey()
		auth := authIndex[k]

		switch {
		case sheetCount[k] > 1 || len(auth) > 1:
			outcomes = append(outcomes, m.outcome(s, nil, model.ReasonAmbiguousMatch))
		case len(auth) == 1:
			a := &authoritative[auth[0]]
			paired[auth[0]] = true
			outcomes = append(outcomes, m.pair(s, a))
		default:
			outcomes = append(outcomes, m.outcome(s, nil, model.ReasonMissingInAuthoritative))
		}
	}

	for i := range authoritative {
		if paired[i] {
			continue
		}
		a := &authoritative[i]
		k := a.MatchKey()
		if sheetCount[k] > 1 || len(authIndex[k]) > 1 {
			outcomes = append(outcomes, m.outcome(nil, a, model.ReasonAmbiguousMatch))
			continue
		}
		outcomes = append(outcomes, m.outcome(nil, a, model.ReasonMissingInSpreadsheet))
	}

	return outcomes
}

func (m Matcher) pair(s, a *model.CanonicalRecord) model.MatchOutcome {
	delta := a.Amount.Sub(s.Amount)
	reason := model.ReasonMatched
	switch {
	case delta.Abs().GreaterThan(m.Tolerance):
		reason = model.ReasonAmountMismatch
	case m.DetailLimit > 0 && len(a.Details) > m.DetailLimit:
		reason = model.ReasonDetailLimitExceeded
	}
	o := m.outcome(s, a, reason)
	o.Delta = delta
	return o
}

func (m Matcher) outcome(s, a *model.CanonicalRecord, reason model.Reason) model.MatchOutcome {
	return model.MatchOutcome{
		Spreadsheet:    s,
		Authoritative:  a,
		Reason:         reason,
		AboveThreshold: m.aboveThreshold(s) || m.aboveThreshold(a),
	}
}

func (m Matcher) aboveThreshold(r *model.CanonicalRecord) bool {
	return r != nil && m.ReviewThreshold.IsPositive() && r.Amount.Abs().GreaterThanOrEqual(m.ReviewThreshold)
}

// Ambiguities reports each key that could not be paired because more than
// one record shares it.
func Ambiguities(outcomes []model.MatchOutcome) []*common.AmbiguousMatchError {
	counts := make(map[model.Key]int)
	var keys []model.Key
	for _, o := range outcomes {
		if o.Reason != model.ReasonAmbiguousMatch {
			continue
		}
		var k model.Key
		if o.Spreadsheet != nil {
			k = o.Spreadsheet.MatchKey()
		} else {
			k = o.Authoritative.MatchKey()
		}
		if counts[k] == 0 {
			keys = append(keys, k)
		}
		counts[k]++
	}

	errs := make([]*common.AmbiguousMatchError, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, &common.AmbiguousMatchError{Key: k.String(), Count: counts[k]})
	}
	return errs
}
