package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
)

// DuplicatePolicy decides which member of a duplicate group is kept.
// Amount never takes part in the decision.
type DuplicatePolicy int

// Duplicate policies.
const (
	// EarliestDateThenPosition keeps the earliest business date, breaking
	// ties by original position.
	EarliestDateThenPosition DuplicatePolicy = iota
	// EarliestPosition keeps the record that appears first in its source.
	EarliestPosition
)

// ParseDuplicatePolicy maps a configuration value to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "earliest_date", "earliest_date_then_position":
		return EarliestDateThenPosition, nil
	case "earliest_position", "position":
		return EarliestPosition, nil
	}
	return EarliestDateThenPosition, fmt.Errorf("unknown duplicate policy %q", s)
}

func (p DuplicatePolicy) String() string {
	if p == EarliestPosition {
		return "earliest_position"
	}
	return "earliest_date_then_position"
}

// prefers reports whether a should represent a group over b.
func (p DuplicatePolicy) prefers(a, b model.CanonicalRecord) bool {
	if p == EarliestDateThenPosition && !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.Position().Before(b.Position())
}

// ResolveDuplicates applies the default policy.
func ResolveDuplicates(records []model.CanonicalRecord) ([]model.CanonicalRecord, []model.DuplicateGroup) {
	return ResolveDuplicatesWith(records, EarliestDateThenPosition)
}

// ResolveDuplicatesWith groups records by identity key and keeps one
// representative per group. Representatives keep input order. Groups with
// surplus members are returned ordered by representative position, each
// surplus list ordered by the policy.
func ResolveDuplicatesWith(records []model.CanonicalRecord, policy DuplicatePolicy) ([]model.CanonicalRecord, []model.DuplicateGroup) {
	members := make(map[model.IdentityKey][]int, len(records))
	var keys []model.IdentityKey
	for i, r := range records {
		k := r.IdentityKey()
		if _, ok := members[k]; !ok {
			keys = append(keys, k)
		}
		members[k] = append(members[k], i)
	}

	chosen := make(map[int]bool, len(keys))
	var groups []model.DuplicateGroup
	for _, k := range keys {
		idx := members[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return policy.prefers(records[idx[a]], records[idx[b]])
		})
		chosen[idx[0]] = true
		if len(idx) == 1 {
			continue
		}
		group := model.DuplicateGroup{Key: k, Representative: records[idx[0]]}
		for _, i := range idx[1:] {
			group.Surplus = append(group.Surplus, records[i])
		}
		groups = append(groups, group)
	}

	representatives := make([]model.CanonicalRecord, 0, len(keys))
	for i, r := range records {
		if chosen[i] {
			representatives = append(representatives, r)
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Representative.Position().Before(groups[b].Representative.Position())
	})
	return representatives, groups
}

// SurplusCount totals the surplus members across groups.
func SurplusCount(groups []model.DuplicateGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Surplus)
	}
	return n
}
