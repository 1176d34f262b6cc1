package authfilter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeStore struct {
	byKey map[string]Identity
}

func (f *fakeStore) Resolve(ctx context.Context, apiKey string) (Identity, error) {
	id, ok := f.byKey[apiKey]
	if !ok {
		return Identity{}, errors.New("not found")
	}
	return id, nil
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	f := New(&fakeStore{byKey: map[string]Identity{}})
	handler := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/connectors/platforms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_RejectsUnknownToken(t *testing.T) {
	f := New(&fakeStore{byKey: map[string]Identity{}})
	handler := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an unresolvable token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/connectors/platforms", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_AttachesIdentityOnSuccess(t *testing.T) {
	f := New(&fakeStore{byKey: map[string]Identity{
		"good-key": {Source: "sniper", SourceID: "tenant1"},
	}})

	var got Identity
	handler := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		got = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/connectors/platforms", nil)
	req.Header.Set("Authorization", "Bearer good-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.Source != "sniper" || got.SourceID != "tenant1" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}
