package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meemee/studio"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/template"
)

const jobColumns = `
	id, owner_id, notify_target, template_id, template_name, display_name,
	gender, raw_prompt, prompt, state, task_handle, asset_url,
	failure_reason, failure_detail, failure_ref, delivery_ref,
	created_at, updated_at`

// CreateJob persists a new job in queued state.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if j.State != job.StateQueued {
		return studio.ErrInvalidState
	}

	prompt, err := marshalPrompt(j.Prompt)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO studio_jobs (`+jobColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18
		)`,
		j.ID.String(), j.OwnerID, j.NotifyTarget, j.TemplateID, j.TemplateName, j.DisplayName,
		string(j.Gender), j.RawPrompt, prompt, string(j.State), j.TaskHandle, j.AssetURL,
		string(j.FailureReason), j.FailureDetail, j.FailureRef.String(), j.DeliveryRef,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return studio.ErrJobAlreadyExists
		}
		return fmt.Errorf("studio/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM studio_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, studio.ErrJobNotFound
		}
		return nil, fmt.Errorf("studio/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob locks the job row, applies p and writes the result back in
// one transaction.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, p job.Patch) (*job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM studio_jobs WHERE id = $1 FOR UPDATE`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, studio.ErrJobNotFound
		}
		return nil, fmt.Errorf("studio/postgres: lock job: %w", err)
	}

	if err := p.Apply(j); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE studio_jobs SET
			state = $2, task_handle = $3, asset_url = $4,
			failure_reason = $5, failure_detail = $6, failure_ref = $7,
			delivery_ref = $8, updated_at = $9
		WHERE id = $1`,
		j.ID.String(), string(j.State), j.TaskHandle, j.AssetURL,
		string(j.FailureReason), j.FailureDetail, j.FailureRef.String(),
		j.DeliveryRef, j.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: update job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("studio/postgres: commit update: %w", err)
	}
	return j, nil
}

// ListJobsByState returns jobs in the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	query, args := pageClause(
		`SELECT `+jobColumns+` FROM studio_jobs WHERE state = $1 ORDER BY created_at ASC, id ASC`,
		[]interface{}{string(state)}, opts.Limit, opts.Offset,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListUserJobs returns the owner's jobs, newest first.
func (s *Store) ListUserJobs(ctx context.Context, ownerID int64, opts job.ListOpts) ([]*job.Job, error) {
	query, args := pageClause(
		`SELECT `+jobColumns+` FROM studio_jobs WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		[]interface{}{ownerID}, opts.Limit, opts.Offset,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: list user jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM studio_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
		argIdx++
	}
	if opts.OwnerID != 0 {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, opts.OwnerID)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("studio/postgres: count jobs: %w", err)
	}
	return count, nil
}

// QueueLength returns the number of queued jobs.
func (s *Store) QueueLength(ctx context.Context) (int64, error) {
	return s.CountJobs(ctx, job.CountOpts{State: job.StateQueued})
}

func marshalPrompt(n template.Node) ([]byte, error) {
	if n.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: marshal prompt: %w", err)
	}
	return b, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		gender    string
		prompt    []byte
		stateStr  string
		reasonStr string
		refStr    string
	)
	err := row.Scan(
		&idStr, &j.OwnerID, &j.NotifyTarget, &j.TemplateID, &j.TemplateName, &j.DisplayName,
		&gender, &j.RawPrompt, &prompt, &stateStr, &j.TaskHandle, &j.AssetURL,
		&reasonStr, &j.FailureDetail, &refStr, &j.DeliveryRef,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Gender = template.Gender(gender)
	j.State = job.State(stateStr)
	j.FailureReason = job.Reason(reasonStr)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("studio/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if refStr != "" {
		if ref, refErr := id.ParseErrorRef(refStr); refErr == nil {
			j.FailureRef = ref
		}
	}

	if len(prompt) > 0 {
		if err := json.Unmarshal(prompt, &j.Prompt); err != nil {
			return nil, fmt.Errorf("studio/postgres: parse prompt of %s: %w", idStr, err)
		}
	}

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("studio/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("studio/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
