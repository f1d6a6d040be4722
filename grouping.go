// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1}

// minusLogPvalueChisq returns -log10 of the chi-squared (1 df) survival
// p-value of stat.
func minusLogPvalueChisq(stat float64) float64 {
	return -math.Log10(chisquared.Survival(stat))
}

// classify labels each marker 1 when its squared statistic is more
// significant than pThresh, 0 otherwise. Labels are fixed for the whole
// run; significant markers are thresholded separately so true signal is
// not filtered against the genome-wide background.
func classify(zScores []float64, pThresh float64) []int {
	cut := -math.Log10(pThresh)
	grouping := make([]int, len(zScores))
	for i, z := range zScores {
		if minusLogPvalueChisq(z*z) > cut {
			grouping[i] = 1
		}
	}
	return grouping
}
