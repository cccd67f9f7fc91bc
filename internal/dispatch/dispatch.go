// Package dispatch fans work items out to a fixed-size pool of workers, each
// of which blocks on one external program at a time.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"qiime2its/internal/runner"
)

// Partition splits a CPU budget for a dispatch. Both the pool size and the
// per-worker share are total/divisor, so with total=8 and divisor=4 only 4 of
// the 8 CPUs are used. Results below 1 are raised to 1.
func Partition(total, divisor int) (pool, share int) {
	if divisor < 1 {
		divisor = 1
	}
	pool = total / divisor
	if pool < 1 {
		pool = 1
	}
	return pool, pool
}

// Outcome pairs an item's position in the input with the result of its
// invocation.
type Outcome struct {
	Index  int           `json:"index"`
	Result runner.Result `json:"result"`
}

// Map runs fn for every item on at most workers goroutines and returns once
// all of them have finished. Items are submitted in input order; outcomes are
// returned in input order whatever the completion order was. A failed item
// does not stop its siblings.
func Map[T any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) runner.Result) []Outcome {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(items))

	var group errgroup.Group
	group.SetLimit(workers)
	for i, item := range items {
		group.Go(func() error {
			outcomes[i] = Outcome{Index: i, Result: fn(ctx, item)}
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

// Failed returns the outcomes whose invocation did not exit cleanly.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.Result.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}
