package errlog

import (
	"context"

	"github.com/meemee/studio/id"
)

// ListOpts controls pagination for error list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
}

// Store defines the persistence contract for the error log.
type Store interface {
	// AppendError stores an entry as the newest one and trims the log to
	// the retain newest entries. A retain of zero disables trimming.
	AppendError(ctx context.Context, entry *Entry, retain int) error

	// ListErrors returns entries newest first.
	ListErrors(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetError retrieves an entry or returns studio.ErrErrorNotFound.
	GetError(ctx context.Context, ref id.ErrorRef) (*Entry, error)

	// ClearErrors removes every entry and returns how many were removed.
	ClearErrors(ctx context.Context) (int64, error)

	// CountErrors returns the number of retained entries.
	CountErrors(ctx context.Context) (int64, error)
}
