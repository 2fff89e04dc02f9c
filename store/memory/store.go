package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meemee/studio"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store    = (*Store)(nil)
	_ errlog.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*job.Job
	userJobs map[int64][]id.JobID // append order, oldest first
	queue    []id.JobID           // FIFO work queue

	errors   map[string]*errlog.Entry
	errOrder []id.ErrorRef // newest first
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		userJobs: make(map[int64][]id.JobID),
		errors:   make(map[string]*errlog.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new queued job and indexes it.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	if j.State != job.StateQueued {
		return studio.ErrInvalidState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return studio.ErrJobAlreadyExists
	}
	m.jobs[key] = j.Clone()
	m.userJobs[j.OwnerID] = append(m.userJobs[j.OwnerID], j.ID)
	m.queue = append(m.queue, j.ID)
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, studio.ErrJobNotFound
	}
	return j.Clone(), nil
}

// UpdateJob applies p to the stored job under the store lock.
func (m *Store) UpdateJob(_ context.Context, jobID id.JobID, p job.Patch) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	stored, ok := m.jobs[key]
	if !ok {
		return nil, studio.ErrJobNotFound
	}

	next := stored.Clone()
	if err := p.Apply(next); err != nil {
		return nil, err
	}
	if p.LeavesQueue(stored.State) {
		m.removeFromQueue(jobID)
	}
	m.jobs[key] = next
	return next.Clone(), nil
}

func (m *Store) removeFromQueue(jobID id.JobID) {
	for i, qid := range m.queue {
		if qid.String() == jobID.String() {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// ListJobsByState returns jobs in the given state, oldest first.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		result = append(result, j.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.Before(result[k].CreatedAt)
		}
		return result[i].ID.String() < result[k].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ListUserJobs returns the owner's jobs, newest first.
func (m *Store) ListUserJobs(_ context.Context, ownerID int64, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.userJobs[ownerID]
	result := make([]*job.Job, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if j, ok := m.jobs[ids[i].String()]; ok {
			result = append(result, j.Clone())
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if opts.OwnerID != 0 && j.OwnerID != opts.OwnerID {
			continue
		}
		count++
	}
	return count, nil
}

// QueueLength returns the number of queued job ids.
func (m *Store) QueueLength(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.queue)), nil
}

// ──────────────────────────────────────────────────
// Error Log Store
// ──────────────────────────────────────────────────

// AppendError stores entry as the newest one and trims to retain.
func (m *Store) AppendError(_ context.Context, entry *errlog.Entry, retain int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.errors[entry.Ref.String()] = &cp
	m.errOrder = append([]id.ErrorRef{entry.Ref}, m.errOrder...)

	if retain > 0 && len(m.errOrder) > retain {
		for _, ref := range m.errOrder[retain:] {
			delete(m.errors, ref.String())
		}
		m.errOrder = m.errOrder[:retain]
	}
	return nil
}

// ListErrors returns entries newest first.
func (m *Store) ListErrors(_ context.Context, opts errlog.ListOpts) ([]*errlog.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*errlog.Entry, 0, len(m.errOrder))
	for _, ref := range m.errOrder {
		cp := *m.errors[ref.String()]
		result = append(result, &cp)
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// GetError retrieves an entry by reference.
func (m *Store) GetError(_ context.Context, ref id.ErrorRef) (*errlog.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.errors[ref.String()]
	if !ok {
		return nil, studio.ErrErrorNotFound
	}
	cp := *e
	return &cp, nil
}

// ClearErrors removes every entry.
func (m *Store) ClearErrors(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.errOrder))
	m.errors = make(map[string]*errlog.Entry)
	m.errOrder = nil
	return n, nil
}

// CountErrors returns the number of retained entries.
func (m *Store) CountErrors(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.errOrder)), nil
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
