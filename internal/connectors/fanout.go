package connectors

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency and MaxConcurrency bound the fan-out width for
// search/harvest/detail operations (spec §4.E.i: "default 2, max 10").
const (
	DefaultConcurrency = 2
	MaxConcurrency     = 10
)

// ClampConcurrency applies the spec's default/max bounds.
func ClampConcurrency(n int) int {
	if n <= 0 {
		return DefaultConcurrency
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// FanOut runs one goroutine per item through a semaphore of the given
// width, collecting results in completion order (spec §5: "result ordering
// is completion order, not input order"). A failing worker's error is
// captured into its own result slot rather than aborting siblings — callers
// that need per-item success/failure (e.g. GetNoteDetail) pass a work fn
// that itself never returns an error and instead encodes failure in O.
func FanOut[I any, O any](ctx context.Context, items []I, concurrency int, work func(ctx context.Context, item I) O) []O {
	sem := semaphore.NewWeighted(int64(ClampConcurrency(concurrency)))
	results := make(chan O, len(items))

	for _, item := range items {
		item := item
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled before this worker could even start; the
			// caller observes fewer results than len(items), which the
			// cancellation-propagation contract in spec §5 treats as
			// expected ("abort in-flight workers at their next suspension
			// point").
			break
		}
		go func() {
			defer sem.Release(1)
			results <- work(ctx, item)
		}()
	}

	out := make([]O, 0, len(items))
	// Re-acquire the full weight to know every launched worker has
	// finished and released, then drain exactly that many results.
	sem.Acquire(context.Background(), int64(ClampConcurrency(concurrency)))
	close(results)
	for r := range results {
		out = append(out, r)
	}
	return out
}

// BatchesOf3 splits items into size-3 batches, matching spec §4.E.iii's
// two-level detail-fetch structure (batches of 3, concurrency 2 inside each
// batch). Each batch is run in full via fn and awaited before the next
// starts.
func BatchesOf3[I any, O any](ctx context.Context, items []I, innerConcurrency int, fn func(ctx context.Context, batch []I) []O) []O {
	const batchSize = 3
	var out []O
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		if ctx.Err() != nil {
			break
		}
		out = append(out, fn(ctx, items[start:end])...)
	}
	return out
}
