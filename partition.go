// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"sort"

	"golang.org/x/exp/rand"
)

// drawSpace is the size of the value space the partitioner draws from.
// Permutations are built by drawing distinct values, so n must stay well
// below drawSpace or the rejection loop degenerates; Params.validate
// rejects marker counts above drawSpace/2.
const drawSpace = 1 << 31

// randomOrder returns a permutation of {0,…,n-1}, built by drawing n
// distinct values from a generator seeded with seed and sorting indices
// by drawn value. The same (n, seed) always yields the same permutation.
func randomOrder(n int, seed int) []int {
	rng := rand.New(rand.NewSource(uint64(seed)))
	vals := make([]int32, n)
	seen := make(map[int32]bool, n)
	for i := range vals {
		v := rng.Int31()
		for seen[v] {
			v = rng.Int31()
		}
		seen[v] = true
		vals[i] = v
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })
	return order
}

// bisect splits the active marker set into a reference half and a target
// half using the permutation from randomOrder. order[p] is the permutation
// value at position p of the active set; values in the upper half select
// the reference set. The two returned sets partition active exactly and
// differ in size by at most one.
func bisect(active, order []int) (reference, target []int) {
	n := len(active)
	for p, marker := range active {
		if order[p] >= n/2 {
			reference = append(reference, marker)
		} else {
			target = append(target, marker)
		}
	}
	return
}

// roundSeed returns the partition seed for a round. Round 0 uses the
// caller's seed; later rounds follow a fixed schedule so a run is
// reproducible from Params.Seed alone.
func roundSeed(base, round int) int {
	if round == 0 {
		return base
	}
	return 20000 + (round-1)*20000
}
