package ena

import "sort"

// ComputeCoverage fills in Coverage for each run as base_count over the
// ungapped genome size. A zero genome size leaves all coverages at zero,
// which disables coverage-based filtering downstream.
func ComputeCoverage(runs []Run, genomeSizeUngapped int64) {
	if genomeSizeUngapped <= 0 {
		return
	}
	for i := range runs {
		runs[i].Coverage = float64(runs[i].BaseCount) / float64(genomeSizeUngapped)
	}
}

// FilterByCoverage keeps runs whose coverage lies inside [min, max]. A zero
// bound means unbounded on that side. The input order is preserved.
func FilterByCoverage(runs []Run, min, max float64) []Run {
	if min <= 0 && max <= 0 {
		return runs
	}
	kept := runs[:0:0]
	for _, r := range runs {
		if min > 0 && r.Coverage < min {
			continue
		}
		if max > 0 && r.Coverage > max {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// SortByCoverage orders runs by coverage descending, breaking ties by base
// count and then accession so the order is deterministic.
func SortByCoverage(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Coverage != runs[j].Coverage {
			return runs[i].Coverage > runs[j].Coverage
		}
		if runs[i].BaseCount != runs[j].BaseCount {
			return runs[i].BaseCount > runs[j].BaseCount
		}
		return runs[i].Accession < runs[j].Accession
	})
}

// Truncate limits runs to at most n entries. n <= 0 means no limit.
func Truncate(runs []Run, n int) []Run {
	if n <= 0 || len(runs) <= n {
		return runs
	}
	return runs[:n]
}
