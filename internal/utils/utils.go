package utils

import (
	"sort"

	"github.com/benbjohnson/clock"
)

// LocalTimestamp returns the node's wall-clock time in whole seconds.
func LocalTimestamp(clk clock.Clock) uint64 {
	return uint64(clk.Now().Unix())
}

// Median returns the median of vals. For an even-sized input the lower of the
// two middle values is returned, so the result is always a member of vals.
// Panics on an empty slice; callers must check first.
func Median(vals []uint64) uint64 {
	sorted := make([]uint64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}
