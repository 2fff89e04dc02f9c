package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meemee/studio/job"
	"github.com/meemee/studio/ledger"
)

// CreditRequest adds paid generations to a user.
type CreditRequest struct {
	Amount int64 `json:"amount"`
}

func (a *API) listUserJobs(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseUserID(chi.URLParam(r, "userId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid user ID")
		return
	}
	limit, offset, ok := page(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid limit or offset")
		return
	}

	jobs, err := a.eng.Store().ListUserJobs(r.Context(), owner, job.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("list user jobs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *API) getQuota(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseUserID(chi.URLParam(r, "userId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid user ID")
		return
	}

	bal, err := a.eng.Ledger().Balance(r.Context(), owner)
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("balance: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (a *API) creditQuota(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseUserID(chi.URLParam(r, "userId"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid user ID")
		return
	}
	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	ctx := r.Context()
	if err := a.eng.Ledger().Credit(ctx, owner, req.Amount); err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.writeStoreError(w, fmt.Errorf("credit: %w", err))
		return
	}

	bal, err := a.eng.Ledger().Balance(ctx, owner)
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("balance: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, bal)
}
