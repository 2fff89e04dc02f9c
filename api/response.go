package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/meemee/studio"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, errorResponse{Code: errCode, Message: msg})
}

// writeStoreError converts studio sentinel errors to HTTP errors.
// Anything unrecognized is logged and reported as a 500.
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrJobNotFound),
		errors.Is(err, studio.ErrTemplateNotFound),
		errors.Is(err, studio.ErrErrorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, studio.ErrInvalidRequest),
		errors.Is(err, studio.ErrUnknownGender),
		errors.Is(err, studio.ErrUnresolvedToken):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, studio.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "quota_exhausted", err.Error())
	case errors.Is(err, studio.ErrJobAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// page reads limit and offset query parameters.
func page(r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func parseUserID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
