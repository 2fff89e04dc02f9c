package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meemee/studio"
	"github.com/meemee/studio/errlog"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/template"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Job Store tests
// ──────────────────────────────────────────────────

func newJob(owner int64, createdAt time.Time) *job.Job {
	return &job.Job{
		Entity:       studio.Entity{CreatedAt: createdAt, UpdatedAt: createdAt},
		ID:           id.NewJobID(),
		OwnerID:      owner,
		NotifyTarget: owner,
		TemplateID:   "greeting",
		DisplayName:  "Alex",
		Gender:       template.Male,
		Prompt:       template.Text("Alex waves"),
		State:        job.StateQueued,
	}
}

func TestJobCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(42, time.Now().UTC())
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, j); !errors.Is(err, studio.ErrJobAlreadyExists) {
		t.Errorf("duplicate CreateJob err = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StateQueued || got.Prompt.Render() != "Alex waves" {
		t.Errorf("GetJob = %+v, want queued job with prompt", got)
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, studio.ErrJobNotFound) {
		t.Errorf("GetJob(unknown) err = %v, want ErrJobNotFound", err)
	}

	n, _ := s.QueueLength(ctx)
	if n != 1 {
		t.Errorf("QueueLength = %d, want 1", n)
	}
}

func TestJobCreateRejectsNonQueued(t *testing.T) {
	t.Parallel()
	s := New()

	j := newJob(1, time.Now())
	j.State = job.StateProcessing
	if err := s.CreateJob(context.Background(), j); !errors.Is(err, studio.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestJobUpdateTransitions(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(42, time.Now().UTC())
	_ = s.CreateJob(ctx, j)

	updated, err := s.UpdateJob(ctx, j.ID, job.Patch{State: job.StateProcessing})
	if err != nil {
		t.Fatalf("UpdateJob processing: %v", err)
	}
	if updated.State != job.StateProcessing {
		t.Errorf("State = %q, want processing", updated.State)
	}
	if n, _ := s.QueueLength(ctx); n != 0 {
		t.Errorf("QueueLength = %d, want 0 after leaving queued", n)
	}

	if _, err := s.UpdateJob(ctx, j.ID, job.Patch{State: job.StateDone, AssetURL: "https://x/1.mp4"}); err != nil {
		t.Fatalf("UpdateJob done: %v", err)
	}

	_, err = s.UpdateJob(ctx, j.ID, job.Patch{State: job.StateDone, AssetURL: "https://x/2.mp4"})
	if !errors.Is(err, studio.ErrInvalidState) {
		t.Fatalf("second finish err = %v, want ErrInvalidState", err)
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.AssetURL != "https://x/1.mp4" {
		t.Errorf("AssetURL = %q, rejected patch must not be stored", got.AssetURL)
	}

	if _, err := s.UpdateJob(ctx, id.NewJobID(), job.Patch{}); !errors.Is(err, studio.ErrJobNotFound) {
		t.Errorf("UpdateJob(unknown) err = %v, want ErrJobNotFound", err)
	}
}

func TestJobUpdateIsCompareAndSet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(42, time.Now().UTC())
	_ = s.CreateJob(ctx, j)
	_, _ = s.UpdateJob(ctx, j.ID, job.Patch{State: job.StateProcessing})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var p job.Patch
			if i%2 == 0 {
				p = job.Patch{State: job.StateDone, AssetURL: "https://x/1.mp4"}
			} else {
				p = job.Patch{State: job.StateFailed, FailureReason: job.ReasonTimeout}
			}
			if _, err := s.UpdateJob(ctx, j.ID, p); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("terminal transitions won = %d, want exactly 1", wins)
	}
}

func TestJobListing(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newJob(42, base)
	b := newJob(42, base.Add(time.Minute))
	c := newJob(7, base.Add(2*time.Minute))
	for _, j := range []*job.Job{a, b, c} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	_, _ = s.UpdateJob(ctx, b.ID, job.Patch{State: job.StateProcessing})

	queued, _ := s.ListJobsByState(ctx, job.StateQueued, job.ListOpts{})
	if len(queued) != 2 || queued[0].ID.String() != a.ID.String() {
		t.Errorf("queued = %d jobs, want a then c", len(queued))
	}

	mine, _ := s.ListUserJobs(ctx, 42, job.ListOpts{})
	if len(mine) != 2 || mine[0].ID.String() != b.ID.String() {
		t.Errorf("ListUserJobs = %d jobs, want newest (b) first", len(mine))
	}

	page, _ := s.ListUserJobs(ctx, 42, job.ListOpts{Offset: 1, Limit: 5})
	if len(page) != 1 || page[0].ID.String() != a.ID.String() {
		t.Errorf("page = %d jobs, want [a]", len(page))
	}

	tests := []struct {
		opts job.CountOpts
		want int64
	}{
		{job.CountOpts{}, 3},
		{job.CountOpts{State: job.StateQueued}, 2},
		{job.CountOpts{State: job.StateProcessing}, 1},
		{job.CountOpts{OwnerID: 42}, 2},
		{job.CountOpts{OwnerID: 42, State: job.StateQueued}, 1},
	}
	for _, tt := range tests {
		got, err := s.CountJobs(ctx, tt.opts)
		if err != nil {
			t.Fatalf("CountJobs: %v", err)
		}
		if got != tt.want {
			t.Errorf("CountJobs(%+v) = %d, want %d", tt.opts, got, tt.want)
		}
	}
}

func TestStoredJobIsIsolated(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(42, time.Now().UTC())
	_ = s.CreateJob(ctx, j)
	j.DisplayName = "mutated"

	got, _ := s.GetJob(ctx, j.ID)
	got.State = job.StateDone

	again, _ := s.GetJob(ctx, j.ID)
	if again.DisplayName != "Alex" || again.State != job.StateQueued {
		t.Errorf("stored job changed through caller copies: %+v", again)
	}
}

// ──────────────────────────────────────────────────
// Error Log Store tests
// ──────────────────────────────────────────────────

func TestErrorLogRetention(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var refs []id.ErrorRef
	for range 5 {
		e := &errlog.Entry{Ref: id.NewErrorRef(), Message: "boom", CreatedAt: time.Now().UTC()}
		refs = append(refs, e.Ref)
		if err := s.AppendError(ctx, e, 3); err != nil {
			t.Fatalf("AppendError: %v", err)
		}
	}

	if n, _ := s.CountErrors(ctx); n != 3 {
		t.Fatalf("CountErrors = %d, want 3", n)
	}
	list, _ := s.ListErrors(ctx, errlog.ListOpts{})
	if list[0].Ref.String() != refs[4].String() {
		t.Errorf("ListErrors[0] = %s, want newest %s", list[0].Ref, refs[4])
	}
	if _, err := s.GetError(ctx, refs[0]); !errors.Is(err, studio.ErrErrorNotFound) {
		t.Errorf("trimmed entry err = %v, want ErrErrorNotFound", err)
	}
	if _, err := s.GetError(ctx, refs[4]); err != nil {
		t.Errorf("GetError(newest): %v", err)
	}

	n, _ := s.ClearErrors(ctx)
	if n != 3 {
		t.Errorf("ClearErrors = %d, want 3", n)
	}
	if n, _ := s.CountErrors(ctx); n != 0 {
		t.Errorf("CountErrors after clear = %d, want 0", n)
	}
}
