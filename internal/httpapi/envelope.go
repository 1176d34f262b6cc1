// Package httpapi is the REST+SSE surface of spec §6, grounded on the
// shape of internal/gateway/server.go (constructor taking config +
// collaborators, mux.HandleFunc per route, checkOrigin-style guard
// helpers) — the gateway's own routing internals (permissions,
// MethodRouter, gateway-specific RateLimiter) sit outside this retrieval
// pack's snapshot, so the routing is rewritten for a REST+SSE surface
// while keeping that constructor/mux shape.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/harvestgate/internal/apperr"
)

// envelope is the uniform response body of spec §6: {code, message, data}.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("httpapi.write_json", "error", err)
	}
}

// writeOK writes the success envelope (code=0).
func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: 0, Message: "ok", Data: data})
}

// writeError maps a business error to its (http_status, code) pair per
// spec §7's taxonomy table, grounded on the `exception_handler.py`
// middleware pattern referenced in original_source/middleware/: one
// dispatch point translating every apperr.Kind to its HTTP surface.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, envelope{Code: 500, Message: "internal error"})
		return
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, envelope{Code: 422, Message: appErr.Message})
	case apperr.KindUnauthorized:
		writeJSON(w, http.StatusUnauthorized, envelope{Code: 401, Message: appErr.Message})
	case apperr.KindRateLimitExceeded:
		writeJSON(w, http.StatusTooManyRequests, envelope{Code: 400, Message: appErr.Message})
	case apperr.KindLockConflict:
		writeJSON(w, http.StatusConflict, envelope{Code: 400, Message: appErr.Message})
	case apperr.KindContextNotFound:
		writeJSON(w, http.StatusUnauthorized, envelope{Code: 400, Message: appErr.Message, Data: appErr.Extra})
	case apperr.KindNotLoggedIn:
		writeJSON(w, http.StatusOK, envelope{Code: 604, Message: appErr.Message, Data: appErr.Extra})
	case apperr.KindSessionCreation, apperr.KindBrowserInit:
		writeJSON(w, http.StatusInternalServerError, envelope{Code: 500, Message: appErr.Message})
	case apperr.KindNotImplemented:
		writeJSON(w, http.StatusBadRequest, envelope{Code: 400, Message: appErr.Message})
	default:
		var unwrapped *apperr.Error
		if errors.As(err, &unwrapped) {
			slog.Error("httpapi.internal_error", "error", unwrapped.Error())
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Code: 500, Message: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}
