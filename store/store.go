// Package store defines the aggregate persistence interface. Each subsystem
// (job, errlog) defines its own store interface; the composite Store
// composes them. Backends: Postgres, Redis, and Memory.
package store

import (
	"context"

	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/job"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store.
type Store interface {
	job.Store
	errlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
