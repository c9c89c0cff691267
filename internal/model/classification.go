// Package model defines the core domain models used throughout the application.
package model

import "github.com/shopspring/decimal"

// Reason explains why a record landed in its bucket.
type Reason string

// Reason codes.
const (
	ReasonMatched                Reason = "matched"
	ReasonMissingInAuthoritative Reason = "missing_in_authoritative"
	ReasonMissingInSpreadsheet   Reason = "missing_in_spreadsheet"
	ReasonAmountMismatch         Reason = "amount_mismatch"
	ReasonDuplicate              Reason = "duplicate"
	ReasonAboveThreshold         Reason = "above_review_threshold"
	ReasonAmbiguousMatch         Reason = "ambiguous_match"
	ReasonDetailLimitExceeded    Reason = "detail_limit_exceeded"
	ReasonOutOfPeriod            Reason = "out_of_period"
)

// Bucket is the final classification of a record.
type Bucket string

// Buckets. Excluded records are reported separately and never counted in
// the other totals.
const (
	BucketMatched      Bucket = "matched"
	BucketUnmatched    Bucket = "unmatched"
	BucketManualReview Bucket = "manual_review"
	BucketExcluded     Bucket = "excluded"
)

// Buckets lists the reportable buckets in sheet order.
var Buckets = []Bucket{BucketMatched, BucketUnmatched, BucketManualReview}

// DuplicateGroup is a set of records sharing an identity key.
type DuplicateGroup struct {
	Key            IdentityKey
	Representative CanonicalRecord
	Surplus        []CanonicalRecord
}

// MatchOutcome pairs at most one spreadsheet record with at most one
// authoritative record.
type MatchOutcome struct {
	Spreadsheet    *CanonicalRecord
	Authoritative  *CanonicalRecord
	Delta          decimal.Decimal
	Reason         Reason
	AboveThreshold bool
}

// HasPair reports whether both sides are present.
func (o MatchOutcome) HasPair() bool {
	return o.Spreadsheet != nil && o.Authoritative != nil
}

// ClassificationResult is the outcome for a single input record.
type ClassificationResult struct {
	Paired      *CanonicalRecord
	Delta       *decimal.Decimal
	Record      CanonicalRecord
	Bucket      Bucket
	Reason      Reason
	MatchReason Reason
}

// Rejection records a malformed input that never reached matching.
type Rejection struct {
	Position Position
	Origin   Origin
	Detail   string
}
