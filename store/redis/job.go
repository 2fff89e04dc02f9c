package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meemee/studio"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/template"
)

// CreateJob stores the job as a Hash, indexes it by state and owner, and
// appends it to the work queue.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if j.State != job.StateQueued {
		return studio.ErrInvalidState
	}

	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("studio/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return studio.ErrJobAlreadyExists
	}

	fields, err := jobToMap(j)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, stateKey(string(j.State)), jID)
	pipe.LPush(ctx, userJobsKey(ownerString(j.OwnerID)), jID)
	pipe.RPush(ctx, queueKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("studio/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, s.client, jobKey(jobID.String()))
}

// UpdateJob applies p under WATCH on the job hash. A concurrent write
// aborts the transaction and the update is retried with jittered backoff.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, p job.Patch) (*job.Job, error) {
	jID := jobID.String()
	key := jobKey(jID)

	var updated *job.Job
	txf := func(tx *goredis.Tx) error {
		j, err := s.getJobByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		from := j.State
		if err := p.Apply(j); err != nil {
			return err
		}
		fields, err := jobToMap(j)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if j.State != from {
				pipe.SMove(ctx, stateKey(string(from)), stateKey(string(j.State)), jID)
			}
			if p.LeavesQueue(from) {
				pipe.LRem(ctx, queueKey, 1, jID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = j
		return nil
	}

	for attempt := 1; attempt <= s.maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			if errors.Is(err, studio.ErrJobNotFound) || errors.Is(err, studio.ErrInvalidState) {
				return nil, err
			}
			return nil, fmt.Errorf("studio/redis: update job: %w", err)
		}
		if err := sleepCtx(ctx, s.txBackoff.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("studio/redis: update job %s: gave up after %d contended attempts", jID, s.maxTxRetries)
}

// ListJobsByState returns jobs in the given state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, stateKey(string(state))).Result()
	if err != nil {
		return nil, fmt.Errorf("studio/redis: list jobs smembers: %w", err)
	}

	jobs, err := s.loadJobs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// A state set may briefly lag the hash during a transition.
	filtered := jobs[:0]
	for _, j := range jobs {
		if j.State == state {
			filtered = append(filtered, j)
		}
	}

	sort.Slice(filtered, func(i, k int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[k].CreatedAt) {
			return filtered[i].CreatedAt.Before(filtered[k].CreatedAt)
		}
		return filtered[i].ID.String() < filtered[k].ID.String()
	})
	return paginate(filtered, opts.Offset, opts.Limit), nil
}

// ListUserJobs returns the owner's jobs, newest first.
func (s *Store) ListUserJobs(ctx context.Context, ownerID int64, opts job.ListOpts) ([]*job.Job, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.client.LRange(ctx, userJobsKey(ownerString(ownerID)), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("studio/redis: list user jobs: %w", err)
	}
	return s.loadJobs(ctx, ids)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	if opts.OwnerID != 0 {
		ids, err := s.client.LRange(ctx, userJobsKey(ownerString(opts.OwnerID)), 0, -1).Result()
		if err != nil {
			return 0, fmt.Errorf("studio/redis: count user jobs: %w", err)
		}
		if opts.State == "" {
			return int64(len(ids)), nil
		}
		jobs, err := s.loadJobs(ctx, ids)
		if err != nil {
			return 0, err
		}
		var n int64
		for _, j := range jobs {
			if j.State == opts.State {
				n++
			}
		}
		return n, nil
	}

	states := job.States
	if opts.State != "" {
		states = []job.State{opts.State}
	}
	pipe := s.client.Pipeline()
	cmds := make([]*goredis.IntCmd, len(states))
	for i, st := range states {
		cmds[i] = pipe.SCard(ctx, stateKey(string(st)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("studio/redis: count jobs: %w", err)
	}
	var total int64
	for _, c := range cmds {
		total += c.Val()
	}
	return total, nil
}

// QueueLength returns the length of the work-queue List.
func (s *Store) QueueLength(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("studio/redis: queue length: %w", err)
	}
	return n, nil
}

// ── helpers ──

func ownerString(ownerID int64) string { return strconv.FormatInt(ownerID, 10) }

// loadJobs fetches job hashes in one pipeline, preserving order and
// skipping ids whose hash is gone.
func (s *Store) loadJobs(ctx context.Context, ids []string) ([]*job.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HGetAll(ctx, jobKey(jID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("studio/redis: load jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue // skip missing
		}
		j, err := mapToJob(vals)
		if err != nil {
			s.logger.Warn("skipping unreadable job hash", "error", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *Store) getJobByKey(ctx context.Context, c goredis.Cmdable, key string) (*job.Job, error) {
	vals, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("studio/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, studio.ErrJobNotFound
	}
	return mapToJob(vals)
}

func jobToMap(j *job.Job) (map[string]interface{}, error) {
	prompt, err := json.Marshal(j.Prompt)
	if err != nil {
		return nil, fmt.Errorf("studio/redis: marshal prompt: %w", err)
	}
	return map[string]interface{}{
		"id":             j.ID.String(),
		"owner_id":       ownerString(j.OwnerID),
		"notify_target":  strconv.FormatInt(j.NotifyTarget, 10),
		"template_id":    j.TemplateID,
		"template_name":  j.TemplateName,
		"display_name":   j.DisplayName,
		"gender":         string(j.Gender),
		"raw_prompt":     j.RawPrompt,
		"prompt":         string(prompt),
		"state":          string(j.State),
		"task_handle":    j.TaskHandle,
		"asset_url":      j.AssetURL,
		"failure_reason": string(j.FailureReason),
		"failure_detail": j.FailureDetail,
		"failure_ref":    j.FailureRef.String(),
		"delivery_ref":   j.DeliveryRef,
		"created_at":     j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":     j.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("studio/redis: parse job id: %w", err)
	}

	owner, _ := strconv.ParseInt(m["owner_id"], 10, 64)       //nolint:errcheck // best-effort parse from trusted Redis data
	target, _ := strconv.ParseInt(m["notify_target"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: studio.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:            jID,
		OwnerID:       owner,
		NotifyTarget:  target,
		TemplateID:    m["template_id"],
		TemplateName:  m["template_name"],
		DisplayName:   m["display_name"],
		Gender:        template.Gender(m["gender"]),
		RawPrompt:     m["raw_prompt"],
		State:         job.State(m["state"]),
		TaskHandle:    m["task_handle"],
		AssetURL:      m["asset_url"],
		FailureReason: job.Reason(m["failure_reason"]),
		FailureDetail: m["failure_detail"],
		DeliveryRef:   m["delivery_ref"],
	}

	if p := m["prompt"]; p != "" && p != "null" {
		if err := json.Unmarshal([]byte(p), &j.Prompt); err != nil {
			return nil, fmt.Errorf("studio/redis: parse prompt: %w", err)
		}
	}
	if ref := m["failure_ref"]; ref != "" {
		j.FailureRef, _ = id.ParseErrorRef(ref) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return j, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
