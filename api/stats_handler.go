package api

import (
	"fmt"
	"net/http"

	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/template"
)

// StatsResponse is the aggregate operator view.
type StatsResponse struct {
	Jobs         JobCountsResponse   `json:"jobs"`
	TopTemplates []job.TemplateCount `json:"top_templates"`
	Errors       errlog.Stats        `json:"errors"`
}

// TemplateResponse is a listed catalog entry.
type TemplateResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Status   template.Status `json:"status"`
	Duration int             `json:"duration,omitempty"`
}

const topTemplates = 10

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := a.countJobs(r)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	done, err := a.eng.Store().ListJobsByState(ctx, job.StateDone, job.ListOpts{})
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("list done jobs: %w", err))
		return
	}

	errStats, err := a.eng.ErrorLog().Stats(ctx)
	if err != nil {
		a.writeStoreError(w, fmt.Errorf("error stats: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Jobs:         counts,
		TopTemplates: job.RankTemplates(done, topTemplates),
		Errors:       errStats,
	})
}

// listTemplates returns active and upcoming templates. Hidden ones are
// never listed.
func (a *API) listTemplates(w http.ResponseWriter, _ *http.Request) {
	listed := template.Listed(a.eng.Resolver().Catalog())
	out := make([]TemplateResponse, 0, len(listed))
	for _, t := range listed {
		out = append(out, TemplateResponse{
			ID:       t.ID,
			Name:     t.Name,
			Status:   t.Status,
			Duration: t.Duration,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
