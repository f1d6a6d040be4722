// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"fmt"

	"gopkg.in/check.v1"
)

type groupingSuite struct{}

var _ = check.Suite(&groupingSuite{})

func (s *groupingSuite) TestMinusLogPvalue(c *check.C) {
	// qchisq(0.95, df=1) => p=0.05 => -log10(p)=1.30103
	c.Check(fmt.Sprintf("%.4f", minusLogPvalueChisq(3.841458820694124)), check.Equals, "1.3010")
	// qchisq(1-5e-8, df=1)
	c.Check(fmt.Sprintf("%.2f", minusLogPvalueChisq(29.716785489763062)), check.Equals, "7.30")
}

func (s *groupingSuite) TestClassify(c *check.C) {
	c.Check(classify([]float64{0, 1, 6, -7}, 5e-8), check.DeepEquals, []int{0, 0, 1, 1})
	// Boundary around the 5% threshold: z=1.96 is just significant,
	// z=1.9 is not.
	c.Check(classify([]float64{1.96, 1.9}, 0.05), check.DeepEquals, []int{1, 0})
	// Labels depend only on the squared statistic.
	c.Check(classify([]float64{6, -6}, 5e-8), check.DeepEquals, []int{1, 1})
}
