package model

import "time"

// FailureKind categorizes why a company could not be reconciled.
type FailureKind string

// Failure kinds.
const (
	FailurePathNotFound     FailureKind = "path_not_found"
	FailureSourceUnreadable FailureKind = "source_unreadable"
	FailureConfiguration    FailureKind = "configuration"
	FailureCanceled         FailureKind = "canceled"
	FailureOutput           FailureKind = "output_unwritable"
)

// Failure is a machine-readable entry for a company that did not complete.
type Failure struct {
	Company string      `json:"company"`
	Kind    FailureKind `json:"kind"`
	Detail  string      `json:"detail"`
}

// Status of a company within a run.
type Status string

// Company statuses.
const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// Counts holds per-bucket totals.
type Counts struct {
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	ManualReview int `json:"manual_review"`
	Excluded     int `json:"excluded"`
}

// Add increments the counter for bucket.
func (c *Counts) Add(bucket Bucket) {
	switch bucket {
	case BucketMatched:
		c.Matched++
	case BucketUnmatched:
		c.Unmatched++
	case BucketManualReview:
		c.ManualReview++
	case BucketExcluded:
		c.Excluded++
	}
}

// Get returns the count for bucket.
func (c Counts) Get(bucket Bucket) int {
	switch bucket {
	case BucketMatched:
		return c.Matched
	case BucketUnmatched:
		return c.Unmatched
	case BucketManualReview:
		return c.ManualReview
	case BucketExcluded:
		return c.Excluded
	}
	return 0
}

// Classified is the number of records placed in a reportable bucket.
func (c Counts) Classified() int {
	return c.Matched + c.Unmatched + c.ManualReview
}

// CompanySummary aggregates one company's outcome.
type CompanySummary struct {
	Company      string        `json:"company"`
	Status       Status        `json:"status"`
	Counts       Counts        `json:"counts"`
	Loaded       int           `json:"loaded"`
	Rejected     int           `json:"rejected"`
	Duplicates   int           `json:"duplicates"`
	OutOfPeriod  int           `json:"out_of_period"`
	MatchedPairs int           `json:"matched_pairs"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Accounted is the number of loaded records that ended somewhere: a bucket,
// the excluded list, or the rejection list. It equals Loaded for a complete
// company.
func (s CompanySummary) Accounted() int {
	return s.Counts.Classified() + s.Counts.Excluded + s.Rejected
}

// CompanyResult is one company's full output.
type CompanyResult struct {
	Failure    *Failure
	Dir        string
	Company    CompanyProfile
	Results    []ClassificationResult
	Rejections []Rejection
	Summary    CompanySummary
}

// Bucket returns the results placed in bucket, in result order.
func (r CompanyResult) Bucket(bucket Bucket) []ClassificationResult {
	var out []ClassificationResult
	for _, res := range r.Results {
		if res.Bucket == bucket {
			out = append(out, res)
		}
	}
	return out
}

// Totals sums company summaries across a run.
type Totals struct {
	Counts      Counts `json:"counts"`
	Loaded      int    `json:"loaded"`
	Rejected    int    `json:"rejected"`
	Duplicates  int    `json:"duplicates"`
	OutOfPeriod int    `json:"out_of_period"`
	Complete    int    `json:"complete"`
	Incomplete  int    `json:"incomplete"`
}

// Add folds a company summary into the totals.
func (t *Totals) Add(s CompanySummary) {
	t.Counts.Matched += s.Counts.Matched
	t.Counts.Unmatched += s.Counts.Unmatched
	t.Counts.ManualReview += s.Counts.ManualReview
	t.Counts.Excluded += s.Counts.Excluded
	t.Loaded += s.Loaded
	t.Rejected += s.Rejected
	t.Duplicates += s.Duplicates
	t.OutOfPeriod += s.OutOfPeriod
	if s.Status == StatusComplete {
		t.Complete++
	} else {
		t.Incomplete++
	}
}

// RunSummary aggregates a whole run.
type RunSummary struct {
	StartedAt time.Time        `json:"started_at"`
	RunID     string           `json:"run_id"`
	Period    Period           `json:"period"`
	Companies []CompanySummary `json:"companies"`
	Failures  []Failure        `json:"failures"`
	Totals    Totals           `json:"totals"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// RunReport is everything a run produces.
type RunReport struct {
	Companies []CompanyResult
	Summary   RunSummary
}
