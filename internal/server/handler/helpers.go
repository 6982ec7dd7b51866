package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/taibet/taibet/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps sentinel errors to HTTP statuses and writes the
// response. Unrecognized errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, rootMessage(err))
	case errors.Is(err, domain.ErrMarketNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, domain.ErrMarketClosed),
		errors.Is(err, domain.ErrMemoUsed),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrSoldOut):
		writeError(w, http.StatusConflict, rootMessage(err))
	case errors.Is(err, domain.ErrInsufficientNetStake):
		writeError(w, http.StatusUnprocessableEntity, rootMessage(err))
	case errors.Is(err, domain.ErrPaymentTimeout):
		writeError(w, http.StatusRequestTimeout, rootMessage(err))
	case errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrDropClosed):
		writeError(w, http.StatusGone, rootMessage(err))
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusServiceUnavailable, rootMessage(err))
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootMessage unwraps to the innermost error so clients see the sentinel
// text without internal call-site prefixes.
func rootMessage(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}

// parseListOpts extracts cursor pagination parameters from the query string.
// Defaults: limit=50 (max 200), empty cursor.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}

	return domain.ListOpts{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
