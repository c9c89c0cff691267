package model

import (
	"fmt"
	"time"

	"github.com/Veraticus/contaflow/internal/common"
)

// Period is the accounting year/month window records are filtered to.
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses a period in YYYY-MM form.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, &common.ConfigurationError{
			Field:  "period",
			Reason: fmt.Sprintf("%q is not in YYYY-MM form", s),
		}
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Validate reports whether the period can be used for a run.
func (p Period) Validate() error {
	if p.Year < 1000 || p.Year > 9999 {
		return &common.ConfigurationError{
			Field:  "period.year",
			Reason: fmt.Sprintf("year %d is not a 4-digit year", p.Year),
		}
	}
	if p.Month < 1 || p.Month > 12 {
		return &common.ConfigurationError{
			Field:  "period.month",
			Reason: fmt.Sprintf("month %d is outside 1-12", p.Month),
		}
	}
	return nil
}

// Contains reports whether t falls in the same calendar year and month.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && int(t.Month()) == p.Month
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
