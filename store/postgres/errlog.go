package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meemee/studio"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/id"
)

const errorColumns = `ref, message, job_id, reason, source, detail, created_at`

// AppendError inserts the entry and deletes everything older than the
// retain newest entries.
func (s *Store) AppendError(ctx context.Context, e *errlog.Entry, retain int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("studio/postgres: begin append error: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO studio_errors (`+errorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Ref.String(), e.Message, e.JobID.String(), e.Reason, e.Source, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("studio/postgres: append error: %w", err)
	}

	if retain > 0 {
		_, err = tx.Exec(ctx, `
			DELETE FROM studio_errors
			WHERE ref NOT IN (
				SELECT ref FROM studio_errors
				ORDER BY created_at DESC, ref DESC
				LIMIT $1
			)`, retain)
		if err != nil {
			return fmt.Errorf("studio/postgres: trim errors: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("studio/postgres: commit append error: %w", err)
	}
	return nil
}

// ListErrors returns entries newest first.
func (s *Store) ListErrors(ctx context.Context, opts errlog.ListOpts) ([]*errlog.Entry, error) {
	query, args := pageClause(
		`SELECT `+errorColumns+` FROM studio_errors ORDER BY created_at DESC, ref DESC`,
		nil, opts.Limit, opts.Offset,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: list errors: %w", err)
	}
	defer rows.Close()

	var entries []*errlog.Entry
	for rows.Next() {
		e, scanErr := scanError(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("studio/postgres: scan error row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("studio/postgres: iterate error rows: %w", err)
	}
	return entries, nil
}

// GetError retrieves an entry by reference.
func (s *Store) GetError(ctx context.Context, ref id.ErrorRef) (*errlog.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+errorColumns+` FROM studio_errors WHERE ref = $1`, ref.String())
	e, err := scanError(row)
	if err != nil {
		if isNoRows(err) {
			return nil, studio.ErrErrorNotFound
		}
		return nil, fmt.Errorf("studio/postgres: get error: %w", err)
	}
	return e, nil
}

// ClearErrors deletes every entry.
func (s *Store) ClearErrors(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM studio_errors`)
	if err != nil {
		return 0, fmt.Errorf("studio/postgres: clear errors: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountErrors returns the number of retained entries.
func (s *Store) CountErrors(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM studio_errors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("studio/postgres: count errors: %w", err)
	}
	return n, nil
}

func scanError(row pgx.Row) (*errlog.Entry, error) {
	var (
		e      errlog.Entry
		refStr string
		jobStr string
	)
	if err := row.Scan(&refStr, &e.Message, &jobStr, &e.Reason, &e.Source, &e.Detail, &e.CreatedAt); err != nil {
		return nil, err
	}

	ref, err := id.ParseErrorRef(refStr)
	if err != nil {
		return nil, fmt.Errorf("studio/postgres: parse error ref %q: %w", refStr, err)
	}
	e.Ref = ref

	if jobStr != "" {
		if jID, jErr := id.ParseJobID(jobStr); jErr == nil {
			e.JobID = jID
		}
	}
	return &e, nil
}
