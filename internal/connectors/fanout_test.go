package connectors

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestFanOut_RunsEveryItemAndRespectsWidth(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var inFlight, maxInFlight int64

	out := FanOut(context.Background(), items, 3, func(ctx context.Context, item int) int {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			m := atomic.LoadInt64(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, n) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return item * 2
	})

	if len(out) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(out))
	}
	if maxInFlight > 3 {
		t.Fatalf("expected at most 3 concurrent workers, observed %d", maxInFlight)
	}
}

func TestFanOut_OneFailureDoesNotAbortSiblings(t *testing.T) {
	type result struct {
		item    int
		success bool
	}
	items := []int{1, 2, 3}
	out := FanOut(context.Background(), items, 2, func(ctx context.Context, item int) result {
		if item == 2 {
			return result{item: item, success: false}
		}
		return result{item: item, success: true}
	})

	if len(out) != 3 {
		t.Fatalf("expected all 3 items to produce a result, got %d", len(out))
	}
	var failures int
	for _, r := range out {
		if !r.success {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly 1 failure recorded, got %d", failures)
	}
}

func TestBatchesOf3_ProcessesInBatchesOfThree(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}
	var batchSizes []int

	BatchesOf3(context.Background(), items, 2, func(ctx context.Context, batch []string) []string {
		batchSizes = append(batchSizes, len(batch))
		return batch
	})

	expected := []int{3, 3, 1}
	if len(batchSizes) != len(expected) {
		t.Fatalf("expected %d batches, got %d (%v)", len(expected), len(batchSizes), batchSizes)
	}
	for i, n := range expected {
		if batchSizes[i] != n {
			t.Fatalf("batch %d: expected size %d, got %d", i, n, batchSizes[i])
		}
	}
}
