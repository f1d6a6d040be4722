// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package dentist implements quality control for GWAS summary statistics
// using the DENTIST method (Chen et al., Nature Communications 2021,
// https://github.com/Yves-CHEN/DENTIST): each marker's test statistic is
// imputed from correlated markers in an LD reference panel, and markers
// whose observed and imputed statistics diverge beyond a data-driven
// threshold are flagged over a fixed number of refinement rounds.
package dentist

import (
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// qcQuantile is the empirical quantile of the absolute adjusted
// statistics used as the per-round filtering threshold.
const qcQuantile = 0.995

// chisqMedian1df is the median of the chi-squared distribution with one
// degree of freedom, the denominator of the genomic-control inflation
// factor.
const chisqMedian1df = 0.456

var (
	// ErrRankDeficient means a round's reference set carried too little
	// independent information to impute from (truncated rank <= 1).
	ErrRankDeficient = errors.New("rank of truncated eigenbasis <= 1")
	// ErrDegenerateResidual means an imputation explained all of a
	// marker's variance (rsq >= 1), leaving no residual to standardize.
	ErrDegenerateResidual = errors.New("imputation rsq >= 1")
)

// Params configures a QC run.
type Params struct {
	// SampleSize is the GWAS sample size, an upper bound on the
	// truncation rank.
	SampleSize int
	// PValueThreshold rescues markers under genomic control; only used
	// when GCControl is set.
	PValueThreshold float64
	// PropSVD is the proportion of the eigenbasis kept when imputing,
	// in (0,1].
	PropSVD float64
	// GCControl enables the genomic-control rescue step.
	GCControl bool
	// Iterations is the number of partition/impute/filter rounds.
	Iterations int
	// GroupingPValue splits markers into significant (group 1) and
	// background (group 0) strata for thresholding.
	GroupingPValue float64
	// Threads bounds the workers used for the gather/scatter loops.
	// It affects wall-clock time only, not the result.
	Threads int
	// Seed drives the random bi-partitioning; runs with equal inputs
	// and equal seeds produce equal results.
	Seed int
}

func (p Params) validate(m, nz int) error {
	if m == 0 {
		return fmt.Errorf("LD matrix is empty")
	}
	if m > drawSpace/2 {
		return fmt.Errorf("%d markers exceeds half the partitioner draw space (%d)", m, drawSpace)
	}
	if nz != m {
		return fmt.Errorf("%d statistics for %d markers", nz, m)
	}
	if p.SampleSize <= 0 {
		return fmt.Errorf("non-positive sample size %d", p.SampleSize)
	}
	if !(p.PropSVD > 0 && p.PropSVD <= 1) {
		return fmt.Errorf("truncation proportion %v outside (0,1]", p.PropSVD)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("non-positive iteration count %d", p.Iterations)
	}
	if !(p.GroupingPValue > 0 && p.GroupingPValue < 1) {
		return fmt.Errorf("grouping p-value %v outside (0,1)", p.GroupingPValue)
	}
	if p.GCControl && !(p.PValueThreshold > 0 && p.PValueThreshold < 1) {
		return fmt.Errorf("p-value threshold %v outside (0,1)", p.PValueThreshold)
	}
	if p.Threads <= 0 {
		return fmt.Errorf("non-positive thread count %d", p.Threads)
	}
	return nil
}

// Result holds per-marker QC state, indexed by the marker's position in
// the input. Markers never drawn into a target set keep zero values.
type Result struct {
	// ImputedZ is the last leave-out prediction of the statistic.
	ImputedZ []float64
	// Rsq is the squared multiple correlation of that prediction,
	// always < 1.
	Rsq []float64
	// ZScoreE is the standardized residual between observed and imputed
	// statistic, the outlier score.
	ZScoreE []float64
	// IterID counts the rounds the marker passed QC.
	IterID []int
	// Grouping is 1 for markers whose observed signal exceeds the
	// grouping p-value threshold, else 0.
	Grouping []int
}

func newResult(m int) *Result {
	return &Result{
		ImputedZ: make([]float64, m),
		Rsq:      make([]float64, m),
		ZScoreE:  make([]float64, m),
		IterID:   make([]int, m),
		Grouping: make([]int, m),
	}
}

// passesQC reports whether an absolute adjusted statistic clears the
// threshold for its group. A zero threshold means the group had too few
// members to estimate one and applies no filtering.
func passesQC(diff float64, group int, threshold1, threshold0 float64) bool {
	threshold := threshold0
	if group == 1 {
		threshold = threshold1
	}
	return threshold == 0 || diff <= threshold
}

// Run performs the full multi-round QC over an M×M LD matrix and its
// M observed statistics. The computation is synchronous, touches no
// external state, and is deterministic given p.Seed.
//
// Rank deficiency of a reference set and degenerate residuals abort the
// whole run: every round conditions on the previous round's survivors,
// so no partial result is usable. Test the returned error against
// ErrRankDeficient and ErrDegenerateResidual with errors.Is.
func Run(ld *mat.SymDense, zScores []float64, p Params) (*Result, error) {
	m := 0
	if ld != nil {
		m = ld.Symmetric()
	}
	if err := p.validate(m, len(zScores)); err != nil {
		return nil, err
	}

	res := newResult(m)
	res.Grouping = classify(zScores, p.GroupingPValue)
	ip := &imputer{
		ld:         ld,
		zScores:    zScores,
		out:        res,
		sampleSize: p.SampleSize,
		propSVD:    p.PropSVD,
		threads:    p.Threads,
	}

	fullIdx := make([]int, m)
	for i := range fullIdx {
		fullIdx[i] = i
	}
	log.Infof("dentist: %d markers, %d rounds, %d threads", m, p.Iterations, p.Threads)

	for t := 0; t < p.Iterations; t++ {
		reference, target := bisect(fullIdx, randomOrder(len(fullIdx), roundSeed(p.Seed, t)))
		if err := ip.impute(reference, target); err != nil {
			return nil, fmt.Errorf("round %d: %w", t+1, err)
		}

		diff := make([]float64, len(target))
		groupingTmp := make([]int, len(target))
		for i, j := range target {
			diff[i] = math.Abs(res.ZScoreE[j])
			groupingTmp[i] = res.Grouping[j]
		}
		threshold := getQuantile(diff, qcQuantile)
		threshold1 := getGroupQuantile(diff, groupingTmp, 1, qcQuantile)
		threshold0 := getGroupQuantile(diff, groupingTmp, 0, qcQuantile)
		log.Debugf("round %d: thresholds overall=%.4g group1=%.4g group0=%.4g", t+1, threshold, threshold1, threshold0)

		// Refresh the target markers' imputations using only the
		// provisionally clean subset as imputation input.
		targetQCed := make([]int, 0, len(target))
		for i, j := range target {
			if passesQC(diff[i], groupingTmp[i], threshold1, threshold0) {
				targetQCed = append(targetQCed, j)
			}
		}
		if err := ip.impute(reference, targetQCed); err != nil {
			return nil, fmt.Errorf("round %d: %w", t+1, err)
		}

		survivors := make([]int, 0, len(fullIdx))
		for _, j := range fullIdx {
			if passesQC(math.Abs(res.ZScoreE[j]), res.Grouping[j], threshold1, threshold0) {
				survivors = append(survivors, j)
				res.IterID[j]++
			}
		}
		if p.GCControl {
			survivors = gcRescue(res, fullIdx, survivors, p.PValueThreshold)
		}
		log.Infof("round %d: %d of %d active markers pass QC", t+1, len(survivors), len(fullIdx))
		fullIdx = survivors
	}
	return res, nil
}

// gcRescue additionally retains active markers whose squared adjusted
// statistic, deflated by the survivors' genomic-control inflation factor,
// falls below pThresh. Rescued markers do not get a survival credit.
func gcRescue(res *Result, fullIdx, survivors []int, pThresh float64) []int {
	if len(survivors) == 0 {
		return survivors
	}
	chisq := make([]float64, len(survivors))
	retained := make(map[int]bool, len(survivors))
	for i, j := range survivors {
		chisq[i] = res.ZScoreE[j] * res.ZScoreE[j]
		retained[j] = true
	}
	sort.Float64s(chisq)
	inflation := stat.Quantile(0.5, stat.Empirical, chisq, nil) / chisqMedian1df
	if inflation <= 0 {
		return survivors
	}
	for _, j := range fullIdx {
		if !retained[j] && res.ZScoreE[j]*res.ZScoreE[j]/inflation < pThresh {
			survivors = append(survivors, j)
		}
	}
	return survivors
}
