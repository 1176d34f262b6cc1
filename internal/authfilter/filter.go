// Package authfilter implements the Bearer-token auth middleware fronting
// every route in internal/httpapi (spec §6: "all JSON, Authorization:
// Bearer <api_key>"), grounded on the teacher's own per-handler
// `h.auth(next)` wrapper pattern (internal/http/providers.go) generalized
// into a single reusable net/http middleware.
package authfilter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
)

type identityKey struct{}

// Identity is the (source, source_id) tenant pair an api_key resolves to.
type Identity struct {
	Source   string
	SourceID string
}

// IdentityStore resolves a bearer token to the tenant it authenticates.
type IdentityStore interface {
	Resolve(ctx context.Context, apiKey string) (Identity, error)
}

// Filter wraps handlers with Bearer-token authentication.
type Filter struct {
	store IdentityStore
}

func New(store IdentityStore) *Filter {
	return &Filter{store: store}
}

// Middleware extracts the bearer token, resolves it via the store, and
// attaches the resulting Identity to the request context. Missing or
// unresolvable tokens short-circuit with apperr.Unauthorized, which
// internal/httpapi/envelope.go maps to HTTP 401.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeUnauthorized(w, apperr.Unauthorized("missing bearer token"))
			return
		}
		identity, err := f.store.Resolve(r.Context(), token)
		if err != nil {
			writeUnauthorized(w, apperr.Unauthorized("invalid api key"))
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext recovers the Identity attached by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}

// writeUnauthorized is a minimal inline responder — internal/httpapi owns
// the full envelope encoder, but the middleware runs before any handler
// and cannot import httpapi without an import cycle (httpapi imports
// authfilter to mount Middleware), so it writes a bare envelope body
// matching the same {code,message,data} shape.
func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"code": 401, "message": err.Error(), "data": nil})
}
