// Package reconcile implements the per-company reconciliation stages:
// period filtering, duplicate resolution, matching and classification.
package reconcile

import "github.com/Veraticus/contaflow/internal/model"

// FilterPeriod splits records into those dated inside period and those
// outside it. Both slices keep input order.
func FilterPeriod(records []model.CanonicalRecord, period model.Period) (kept, excluded []model.CanonicalRecord) {
	kept = make([]model.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if period.Contains(r.Date) {
			kept = append(kept, r)
		} else {
			excluded = append(excluded, r)
		}
	}
	return kept, excluded
}
