package remotebrowser

import (
	"context"
	"testing"
)

func TestFake_ContextGet_CreatesOnlyOnce(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	c1, err := f.ContextGet(ctx, "shortvideo-context:api-tenant1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := f.ContextGet(ctx, "shortvideo-context:api-tenant1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected idempotent context handle, got %q and %q", c1.ID, c2.ID)
	}
}

func TestFake_ContextGet_MissingWithoutCreate(t *testing.T) {
	f := NewFake()
	if _, err := f.ContextGet(context.Background(), "nope", false); err == nil {
		t.Fatal("expected error for missing context with createIfMissing=false")
	}
}

func TestFake_SessionHygiene_CreateThenDelete(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	sess, err := f.SessionCreate(ctx, SessionCreateOptions{ImageID: "browser_latest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.LiveSessions()) != 1 {
		t.Fatalf("expected 1 live session, got %d", len(f.LiveSessions()))
	}

	ok, err := f.Delete(ctx, sess, true)
	if err != nil || !ok {
		t.Fatalf("expected delete to succeed, got ok=%v err=%v", ok, err)
	}
	if len(f.LiveSessions()) != 0 {
		t.Fatalf("expected no live sessions after delete, got %d", len(f.LiveSessions()))
	}
	if f.CreatedCount != 1 || f.DeletedCount != 1 {
		t.Fatalf("expected created=1 deleted=1, got created=%d deleted=%d", f.CreatedCount, f.DeletedCount)
	}
}

func TestFake_Delete_IsIdempotent(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	sess, _ := f.SessionCreate(ctx, SessionCreateOptions{})
	f.Delete(ctx, sess, true)

	// A second delete (e.g. two cleanup paths racing on the same
	// session) must not error.
	ok, err := f.Delete(ctx, sess, true)
	if err != nil {
		t.Fatalf("unexpected error on repeated delete: %v", err)
	}
	if !ok {
		t.Fatal("expected repeated delete to report success (idempotent)")
	}
}
