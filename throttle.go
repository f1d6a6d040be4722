// Copyright (C) The Dentist Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package dentist

import (
	"sync"
	"sync/atomic"
)

// throttle limits the number of concurrent workers and keeps the first
// reported error.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	err       atomic.Value
	setupOnce sync.Once
	errorOnce sync.Once
}

func (t *throttle) Acquire() {
	t.setupOnce.Do(func() { t.ch = make(chan bool, t.Max) })
	t.wg.Add(1)
	t.ch <- true
}

func (t *throttle) Release() {
	t.wg.Done()
	<-t.ch
}

func (t *throttle) Report(err error) {
	if err != nil {
		t.errorOnce.Do(func() { t.err.Store(err) })
	}
}

func (t *throttle) Err() error {
	err, _ := t.err.Load().(error)
	return err
}

func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}

// span is a half-open index range [lo,hi).
type span struct {
	lo, hi int
}

// spans splits [0,n) into at most workers contiguous non-empty ranges.
func spans(n, workers int) []span {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	out := make([]span, 0, workers)
	for w := 0; w < workers; w++ {
		lo := n * w / workers
		hi := n * (w + 1) / workers
		if lo < hi {
			out = append(out, span{lo, hi})
		}
	}
	return out
}

// parallelSpans runs fn over [0,n) split across the given number of
// workers. Each worker owns a disjoint range, so fn may write per-index
// output slots without locking.
func parallelSpans(n, workers int, fn func(lo, hi int)) {
	tt := throttle{Max: workers}
	for _, sp := range spans(n, workers) {
		sp := sp
		tt.Acquire()
		go func() {
			defer tt.Release()
			fn(sp.lo, sp.hi)
		}()
	}
	tt.Wait()
}
