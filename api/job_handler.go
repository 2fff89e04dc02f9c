package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meemee/studio"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
)

// JobCountsResponse holds job counts by state.
type JobCountsResponse struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
	QueueDepth int64 `json:"queue_depth"`
}

// createJob consumes one generation from the owner's quota and creates the
// job. The generation is refunded if the engine rejects the request.
func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var req job.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OwnerID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "owner_id is required")
		return
	}

	ctx := r.Context()
	ok, err := a.eng.Ledger().TryConsume(ctx, req.OwnerID)
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("consume quota: %w", err))
		return
	}
	if !ok {
		a.writeStoreError(w, studio.ErrQuotaExhausted)
		return
	}

	j, err := a.eng.Create(ctx, req)
	if err != nil {
		if refundErr := a.eng.Ledger().Refund(ctx, req.OwnerID); refundErr != nil {
			a.logger.Error("refund after rejected create failed",
				slog.Int64("owner_id", req.OwnerID),
				slog.String("error", refundErr.Error()),
			)
		}
		a.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, j)
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	state := job.State(r.URL.Query().Get("state"))
	if state == "" {
		state = job.StateProcessing
	}
	if !state.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown state %q", state))
		return
	}
	limit, offset, ok := page(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid limit or offset")
		return
	}

	jobs, err := a.eng.Store().ListJobsByState(r.Context(), state, job.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("list jobs: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid job ID: %v", err))
		return
	}

	j, err := a.eng.Store().GetJob(r.Context(), jobID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (a *API) jobCounts(w http.ResponseWriter, r *http.Request) {
	resp, err := a.countJobs(r)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) countJobs(r *http.Request) (JobCountsResponse, error) {
	ctx := r.Context()
	s := a.eng.Store()

	var resp JobCountsResponse
	for _, state := range job.States {
		count, err := s.CountJobs(ctx, job.CountOpts{State: state})
		if err != nil {
			return resp, fmt.Errorf("count jobs (%s): %w", state, err)
		}
		switch state {
		case job.StateQueued:
			resp.Queued = count
		case job.StateProcessing:
			resp.Processing = count
		case job.StateDone:
			resp.Done = count
		case job.StateFailed:
			resp.Failed = count
		}
	}

	depth, err := s.QueueLength(ctx)
	if err != nil {
		return resp, fmt.Errorf("queue length: %w", err)
	}
	resp.QueueDepth = depth
	return resp, nil
}
