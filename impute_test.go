// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type imputeSuite struct{}

var _ = check.Suite(&imputeSuite{})

func symLD(n int, f func(i, j int) float64) *mat.SymDense {
	ld := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			ld.SetSym(i, j, f(i, j))
		}
	}
	return ld
}

func identityLD(n int) *mat.SymDense {
	return symLD(n, func(i, j int) float64 {
		if i == j {
			return 1
		}
		return 0
	})
}

// ar1LD is an autoregressive correlation structure, rho^|i-j|. It is
// positive definite for |rho| < 1, so the reference submatrix always has
// full numerical rank.
func ar1LD(n int, rho float64) *mat.SymDense {
	return symLD(n, func(i, j int) float64 {
		return math.Pow(rho, float64(j-i))
	})
}

func evenOddSplit(n int) (reference, target []int) {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			reference = append(reference, i)
		} else {
			target = append(target, i)
		}
	}
	return
}

func (s *imputeSuite) TestUncorrelatedReferencePredictsNothing(c *check.C) {
	const n = 40
	zScores := make([]float64, n)
	for i := range zScores {
		zScores[i] = 0.1 + float64(i)/20
	}
	out := newResult(n)
	ip := &imputer{ld: identityLD(n), zScores: zScores, out: out, sampleSize: 100, propSVD: 0.5, threads: 3}
	reference, target := evenOddSplit(n)
	c.Assert(ip.impute(reference, target), check.IsNil)
	for _, j := range target {
		c.Check(out.Rsq[j], check.Equals, 0.0)
		c.Check(out.ImputedZ[j], check.Equals, 0.0)
		c.Check(out.ZScoreE[j], check.Equals, zScores[j])
	}
	for _, j := range reference {
		c.Check(out.ZScoreE[j], check.Equals, 0.0)
	}
}

func (s *imputeSuite) TestRsqStaysBelowOne(c *check.C) {
	const n = 60
	zScores := make([]float64, n)
	for i := range zScores {
		zScores[i] = math.Sin(float64(i)) + 0.1
	}
	out := newResult(n)
	ip := &imputer{ld: ar1LD(n, 0.6), zScores: zScores, out: out, sampleSize: 1000, propSVD: 0.9, threads: 4}
	reference, target := evenOddSplit(n)
	c.Assert(ip.impute(reference, target), check.IsNil)
	for _, j := range target {
		if out.Rsq[j] < 0 || out.Rsq[j] >= 1 {
			c.Errorf("marker %d: rsq %v outside [0,1)", j, out.Rsq[j])
		}
		c.Check(math.IsNaN(out.ZScoreE[j]), check.Equals, false)
		c.Check(math.IsInf(out.ZScoreE[j], 0), check.Equals, false)
	}
}

func (s *imputeSuite) TestDuplicateMarkerDegenerateResidual(c *check.C) {
	// Markers 0 and 1 are perfect copies; imputing 1 from {0, 2}
	// explains all of its variance.
	ld := symLD(3, func(i, j int) float64 {
		switch {
		case i == j:
			return 1
		case i == 0 && j == 1:
			return 1
		default:
			return 0
		}
	})
	out := newResult(3)
	ip := &imputer{ld: ld, zScores: []float64{1.5, 1.5, -0.3}, out: out, sampleSize: 10, propSVD: 1, threads: 2}
	err := ip.impute([]int{0, 2}, []int{1})
	c.Assert(err, check.NotNil)
	c.Check(errors.Is(err, ErrDegenerateResidual), check.Equals, true)
}

func (s *imputeSuite) TestRankDeficientReference(c *check.C) {
	// All-ones LD: the reference submatrix has rank 1 no matter how many
	// markers it contains.
	ld := symLD(6, func(i, j int) float64 { return 1 })
	out := newResult(6)
	ip := &imputer{ld: ld, zScores: make([]float64, 6), out: out, sampleSize: 100, propSVD: 1, threads: 1}
	err := ip.impute([]int{0, 1, 2}, []int{3, 4, 5})
	c.Assert(err, check.NotNil)
	c.Check(errors.Is(err, ErrRankDeficient), check.Equals, true)

	// A single-marker reference fails before decomposing anything.
	err = ip.impute([]int{0}, []int{3})
	c.Check(errors.Is(err, ErrRankDeficient), check.Equals, true)
}

func (s *imputeSuite) TestEmptyTargetIsNoop(c *check.C) {
	const n = 10
	out := newResult(n)
	ip := &imputer{ld: identityLD(n), zScores: make([]float64, n), out: out, sampleSize: 100, propSVD: 1, threads: 2}
	reference, _ := evenOddSplit(n)
	c.Assert(ip.impute(reference, nil), check.IsNil)
	c.Check(out.ImputedZ, check.DeepEquals, make([]float64, n))
	c.Check(out.ZScoreE, check.DeepEquals, make([]float64, n))
}
