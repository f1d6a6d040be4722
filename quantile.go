// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"math"
	"sort"
)

// minGroupSize is the smallest stratum a grouped quantile is computed
// from. Below it the returned threshold is 0, which callers treat as "do
// not filter this group".
const minGroupSize = 50

// getQuantile returns the q-th empirical quantile of dat: the value at
// rank ceil(len(dat)*q) of the ascending sort. dat is not modified.
// An empty input yields 0.
func getQuantile(dat []float64, q float64) float64 {
	if len(dat) == 0 {
		return 0
	}
	sorted := append([]float64(nil), dat...)
	sort.Float64s(sorted)
	pos := int(math.Ceil(float64(len(sorted))*q)) - 1
	if pos < 0 {
		pos = 0
	}
	return sorted[pos]
}

// getGroupQuantile returns the q-th quantile of the dat entries whose
// grouping label equals label, or 0 when fewer than minGroupSize entries
// carry that label.
func getGroupQuantile(dat []float64, grouping []int, label int, q float64) float64 {
	filtered := make([]float64, 0, len(dat))
	for i, d := range dat {
		if grouping[i] == label {
			filtered = append(filtered, d)
		}
	}
	if len(filtered) < minGroupSize {
		return 0
	}
	return getQuantile(filtered, q)
}
