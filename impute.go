// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// eigZeroTol is the cutoff below which an eigenvalue of the reference
// LD submatrix is treated as numerically zero when computing the usable
// rank.
const eigZeroTol = 1e-4

// imputer predicts each target marker's statistic from the reference
// markers' LD structure. It writes only to out slots indexed by target
// markers; the LD matrix and statistics are never modified.
type imputer struct {
	ld         *mat.SymDense
	zScores    []float64
	out        *Result
	sampleSize int
	propSVD    float64
	threads    int
}

// impute computes, for every marker in target, a leave-out imputed
// statistic, its squared multiple correlation, and the standardized
// residual against the observed statistic, using a rank-truncated
// eigenbasis of the reference markers' LD submatrix.
//
// The truncation rank is floor(min(|reference|, sampleSize) * propSVD),
// capped at the numerical rank of the reference submatrix. A capped rank
// of 1 or less means the reference set carries no usable independent
// information and aborts with ErrRankDeficient. A squared multiple
// correlation of 1 or more would make the residual variance non-positive
// and aborts with ErrDegenerateResidual.
func (ip *imputer) impute(reference, target []int) error {
	nRef := len(reference)
	k := nRef
	if ip.sampleSize < k {
		k = ip.sampleSize
	}
	k = int(float64(k) * ip.propSVD)
	if k <= 1 {
		return fmt.Errorf("%w: truncation rank %d from %d reference markers", ErrRankDeficient, k, nRef)
	}

	vv := mat.NewSymDense(nRef, nil)
	zRef := make([]float64, nRef)
	parallelSpans(nRef, ip.threads, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			zRef[i] = ip.zScores[reference[i]]
			for j := i; j < nRef; j++ {
				vv.SetSym(i, j, ip.ld.At(reference[i], reference[j]))
			}
		}
	})

	var eig mat.EigenSym
	if !eig.Factorize(vv, true) {
		return fmt.Errorf("eigendecomposition of %d reference markers did not converge", nRef)
	}
	eigval := eig.Values(nil) // ascending
	rank := nRef
	for _, v := range eigval {
		if v < eigZeroTol {
			rank--
		}
	}
	if k > rank {
		k = rank
	}
	if k <= 1 {
		return fmt.Errorf("%w: usable rank %d from %d reference markers", ErrRankDeficient, k, nRef)
	}
	if len(target) == 0 {
		return nil
	}

	// Top-k eigenvectors and inverse-eigenvalue weights, largest last.
	eigvec := mat.NewDense(nRef, nRef, nil)
	eig.VectorsTo(eigvec)
	ui := mat.NewDense(nRef, k, nil)
	wi := make([]float64, k)
	for m := 0; m < k; m++ {
		j := nRef - m - 1
		for r := 0; r < nRef; r++ {
			ui.Set(r, m, eigvec.At(r, j))
		}
		wi[m] = 1 / eigval[j]
	}

	nTgt := len(target)
	ldIT := mat.NewDense(nTgt, nRef, nil)
	parallelSpans(nTgt, ip.threads, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := ldIT.RawRowView(i)
			for j := 0; j < nRef; j++ {
				row[j] = ip.ld.At(target[i], reference[j])
			}
		}
	})

	// beta = C·U·W; imputed = beta·(Uᵀ·zR); rsq_i = <beta_i, (C·U)_i>,
	// the diagonal of beta·Uᵀ·Cᵀ without forming the |T|×|T| product.
	var cu, beta mat.Dense
	cu.Mul(ldIT, ui)
	beta.Mul(&cu, mat.NewDiagDense(k, wi))
	var utz, imputed mat.VecDense
	utz.MulVec(ui.T(), mat.NewVecDense(nRef, zRef))
	imputed.MulVec(&beta, &utz)

	var tt throttle
	tt.Max = ip.threads
	for _, sp := range spans(nTgt, ip.threads) {
		sp := sp
		tt.Acquire()
		go func() {
			defer tt.Release()
			for i := sp.lo; i < sp.hi; i++ {
				j := target[i]
				rsq := mat.Dot(beta.RowView(i), cu.RowView(i))
				ip.out.ImputedZ[j] = imputed.AtVec(i)
				ip.out.Rsq[j] = rsq
				if rsq >= 1 {
					tt.Report(fmt.Errorf("%w: rsq=%v at marker %d", ErrDegenerateResidual, rsq, j))
					continue
				}
				ip.out.ZScoreE[j] = (ip.zScores[j] - ip.out.ImputedZ[j]) / math.Sqrt(ip.ld.At(j, j)-rsq)
			}
		}()
	}
	return tt.Wait()
}
