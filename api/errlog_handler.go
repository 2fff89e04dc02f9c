package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/id"
)

// PurgeResponse reports how many error-log entries were removed.
type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

func (a *API) listErrors(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid limit or offset")
		return
	}
	entries, err := a.eng.ErrorLog().List(r.Context(), errlog.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("list errors: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) getError(w http.ResponseWriter, r *http.Request) {
	ref, err := id.ParseErrorRef(chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid error ref: %v", err))
		return
	}
	e, err := a.eng.ErrorLog().Get(r.Context(), ref)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) errorStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.eng.ErrorLog().Stats(r.Context())
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("error stats: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) purgeErrors(w http.ResponseWriter, r *http.Request) {
	n, err := a.eng.ErrorLog().Clear(r.Context())
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("purge errors: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: n})
}
