package errlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meemee/studio/id"
)

// DefaultRetention is the number of entries kept when no retention is set.
const DefaultRetention = 100

// Service provides high-level error-log operations over a Store.
type Service struct {
	store     Store
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRetention sets how many newest entries are kept.
func WithRetention(n int) Option {
	return func(s *Service) { s.retention = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an error-log service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		retention: DefaultRetention,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogError persists rec and returns the new entry's reference.
func (s *Service) LogError(ctx context.Context, rec Record) (id.ErrorRef, error) {
	entry := &Entry{
		Ref:       id.NewErrorRef(),
		Message:   rec.Message,
		JobID:     rec.JobID,
		Reason:    rec.Reason,
		Source:    rec.Source,
		Detail:    rec.Detail,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendError(ctx, entry, s.retention); err != nil {
		return id.Nil, fmt.Errorf("errlog: append: %w", err)
	}

	s.logger.Error("job error logged",
		slog.String("error_ref", entry.Ref.String()),
		slog.String("job_id", rec.JobID.String()),
		slog.String("reason", rec.Reason),
		slog.String("message", rec.Message),
	)
	return entry.Ref, nil
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return s.store.ListErrors(ctx, opts)
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, ref id.ErrorRef) (*Entry, error) {
	return s.store.GetError(ctx, ref)
}

// Clear removes every entry.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	return s.store.ClearErrors(ctx)
}

// Stats summarizes the retained entries.
type Stats struct {
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	Week     int            `json:"week"`
	ByReason map[string]int `json:"by_reason"`
}

// Stats counts retained entries by age and reason. Today starts at UTC
// midnight.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.store.ListErrors(ctx, ListOpts{})
	if err != nil {
		return Stats{}, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := today.AddDate(0, 0, -7)

	st := Stats{Total: len(entries), ByReason: make(map[string]int)}
	for _, e := range entries {
		if !e.CreatedAt.Before(today) {
			st.Today++
		}
		if !e.CreatedAt.Before(weekAgo) {
			st.Week++
		}
		reason := e.Reason
		if reason == "" {
			reason = "unknown"
		}
		st.ByReason[reason]++
	}
	return st, nil
}
