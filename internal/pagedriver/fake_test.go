package pagedriver

import (
	"context"
	"testing"
)

func TestFakeDriver_EvaluateReturnsQueuedResultsInOrder(t *testing.T) {
	d := NewFakeDriver()
	d.EvalResults = []any{nil, nil, map[string]any{"notes": []any{"a"}}}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		v, err := d.Evaluate(ctx, "window.__INITIAL_STATE__")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != nil {
			t.Fatalf("expected nil on attempt %d, got %v", i+1, v)
		}
	}
	v, err := d.Evaluate(ctx, "window.__INITIAL_STATE__")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil {
		t.Fatal("expected a populated result on the third attempt")
	}
}

func TestFakeDriver_WaitForSelector_RespectsConfiguredPresence(t *testing.T) {
	d := NewFakeDriver()
	d.Selectors[".logged-in-avatar"] = true

	if err := d.WaitForSelector(context.Background(), ".logged-in-avatar", 0); err != nil {
		t.Fatalf("expected configured selector to be found: %v", err)
	}
	if err := d.WaitForSelector(context.Background(), ".missing", 0); err == nil {
		t.Fatal("expected error for unconfigured selector")
	}
}

func TestFakeDriver_Close_IsIdempotent(t *testing.T) {
	d := NewFakeDriver()
	ctx := context.Background()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Fatalf("second close must not error: %v", err)
	}
}
