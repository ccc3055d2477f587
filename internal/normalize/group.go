package normalize

import (
	"regexp"
	"slices"
	"time"

	"opacbridge/internal/opac"
)

// GroupRows groups rows that belong to one logical record by key, keeping
// the order in which each key was first seen. Rows without key are dropped.
func GroupRows[T any](rows []T, key func(T) string) [][]T {
	index := make(map[string]int)
	var groups [][]T
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}

// RowKey returns the first submatch of pattern in s, ex. "123" for
// `wo-row_(\d+)` and "wo-row_123".
func RowKey(pattern *regexp.Regexp, s string) string {
	m := pattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// BestCopy picks the default reservation target: the earliest return
// date first (copies without a date come first), then a copy of the
// preferred branch. The order of equal copies is kept.
func BestCopy(copies []opac.Copy, preferredBranch string) (opac.Copy, bool) {
	if len(copies) == 0 {
		return opac.Copy{}, false
	}
	sorted := slices.Clone(copies)
	slices.SortStableFunc(sorted, func(a, b opac.Copy) int {
		da, db := returnKey(a.ReturnDate), returnKey(b.ReturnDate)
		if da != db {
			if da < db {
				return -1
			}
			return 1
		}
		return branchKey(a, preferredBranch) - branchKey(b, preferredBranch)
	})
	return sorted[0], true
}

func returnKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func branchKey(c opac.Copy, preferred string) int {
	if preferred != "" && c.Branch == preferred {
		return 0
	}
	return 1
}
