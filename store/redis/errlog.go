package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meemee/studio"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/id"
)

// AppendError pushes the entry to the head of the error list and trims the
// list to retain entries, deleting the hashes that fell off.
func (s *Store) AppendError(ctx context.Context, entry *errlog.Entry, retain int) error {
	ref := entry.Ref.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, errorKey(ref), errorToMap(entry))
	pipe.LPush(ctx, errorListKey, ref)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("studio/redis: append error: %w", err)
	}

	if retain <= 0 {
		return nil
	}

	stale, err := s.client.LRange(ctx, errorListKey, int64(retain), -1).Result()
	if err != nil {
		return fmt.Errorf("studio/redis: read trimmed errors: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	pipe = s.client.TxPipeline()
	pipe.LTrim(ctx, errorListKey, 0, int64(retain)-1)
	for _, r := range stale {
		pipe.Del(ctx, errorKey(r))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("studio/redis: trim errors: %w", err)
	}
	return nil
}

// ListErrors returns entries newest first.
func (s *Store) ListErrors(ctx context.Context, opts errlog.ListOpts) ([]*errlog.Entry, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}
	refs, err := s.client.LRange(ctx, errorListKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("studio/redis: list errors: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(refs))
	for i, r := range refs {
		cmds[i] = pipe.HGetAll(ctx, errorKey(r))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("studio/redis: load errors: %w", err)
	}

	entries := make([]*errlog.Entry, 0, len(refs))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		e, convErr := mapToError(vals)
		if convErr != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetError retrieves an entry by reference.
func (s *Store) GetError(ctx context.Context, ref id.ErrorRef) (*errlog.Entry, error) {
	vals, err := s.client.HGetAll(ctx, errorKey(ref.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("studio/redis: get error: %w", err)
	}
	if len(vals) == 0 {
		return nil, studio.ErrErrorNotFound
	}
	return mapToError(vals)
}

// ClearErrors deletes every entry and the list.
func (s *Store) ClearErrors(ctx context.Context) (int64, error) {
	refs, err := s.client.LRange(ctx, errorListKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("studio/redis: clear errors: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, r := range refs {
		pipe.Del(ctx, errorKey(r))
	}
	pipe.Del(ctx, errorListKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("studio/redis: clear errors: %w", err)
	}
	return int64(len(refs)), nil
}

// CountErrors returns the error list length.
func (s *Store) CountErrors(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, errorListKey).Result()
	if err != nil {
		return 0, fmt.Errorf("studio/redis: count errors: %w", err)
	}
	return n, nil
}

func errorToMap(e *errlog.Entry) map[string]interface{} {
	return map[string]interface{}{
		"ref":        e.Ref.String(),
		"message":    e.Message,
		"job_id":     e.JobID.String(),
		"reason":     e.Reason,
		"source":     e.Source,
		"detail":     e.Detail,
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapToError(m map[string]string) (*errlog.Entry, error) {
	ref, err := id.ParseErrorRef(m["ref"])
	if err != nil {
		return nil, fmt.Errorf("studio/redis: parse error ref: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &errlog.Entry{
		Ref:       ref,
		Message:   m["message"],
		Reason:    m["reason"],
		Source:    m["source"],
		Detail:    m["detail"],
		CreatedAt: createdAt,
	}
	if jid := m["job_id"]; jid != "" {
		e.JobID, _ = id.ParseJobID(jid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return e, nil
}
