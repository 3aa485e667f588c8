package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/planix/backend/internal/contextkeys"
	"github.com/planix/backend/internal/domain"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var exposeInternal atomic.Bool

// ExposeInternalErrors controls whether 500 responses include the underlying
// error text. It is enabled outside production.
func ExposeInternalErrors(on bool) {
	exposeInternal.Store(on)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok && appErr.Code < http.StatusInternalServerError {
		body := make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			body[k] = v
		}
		body["error"] = appErr.Message
		JSON(w, appErr.Code, body)
		return
	}

	slog.Error("unhandled error", "error", err)
	body := map[string]string{"error": "internal server error"}
	if exposeInternal.Load() {
		body["detail"] = err.Error()
	}
	JSON(w, http.StatusInternalServerError, body)
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

// accountID returns the authenticated account set by the auth middleware.
func accountID(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(contextkeys.AccountID).(string)
	return id, ok && id != ""
}

func unauthorized(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// queryInt parses an integer query parameter, returning def when absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
