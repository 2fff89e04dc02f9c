package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/meemee/studio/ext"
	"github.com/meemee/studio/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobCreated(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobCreated")
	return nil
}

func (e *allHooksExt) OnJobStarted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobStarted")
	return nil
}

func (e *allHooksExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *allHooksExt) OnJobDone(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobDone")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobNotified(_ context.Context, _ *job.Job, _ bool) error {
	e.calls = append(e.calls, "OnJobNotified")
	return nil
}

func (e *allHooksExt) OnJobRecovered(_ context.Context, _ *job.Job, a ext.RecoveryAction) error {
	e.calls = append(e.calls, "OnJobRecovered:"+string(a))
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// createdOnlyExt only implements OnJobCreated.
type createdOnlyExt struct {
	calls []string
}

func (e *createdOnlyExt) Name() string { return "created-only" }

func (e *createdOnlyExt) OnJobCreated(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobCreated")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobCreated(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	co := &createdOnlyExt{}
	r.Register(all)
	r.Register(co)

	ctx := context.Background()
	j := &job.Job{TemplateID: "greeting"}

	r.EmitJobCreated(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobCreated" {
		t.Fatalf("all: expected [OnJobCreated], got %v", all.calls)
	}
	if len(co.calls) != 1 || co.calls[0] != "OnJobCreated" {
		t.Fatalf("co: expected [OnJobCreated], got %v", co.calls)
	}

	r.EmitJobStarted(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobStarted" {
		t.Fatalf("all: expected OnJobStarted as 2nd, got %v", all.calls)
	}
	if len(co.calls) != 1 {
		t.Fatalf("co: should still have 1 call, got %v", co.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{TemplateID: "greeting"}

	r.EmitJobCreated(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobSubmitted(ctx, j)
	r.EmitJobDone(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobNotified(ctx, j, true)
	r.EmitJobRecovered(ctx, j, ext.RecoveryExpired)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobCreated", "OnJobStarted", "OnJobSubmitted", "OnJobDone",
		"OnJobFailed", "OnJobNotified", "OnJobRecovered:expired", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobCreated(ctx, &job.Job{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 || all.calls[0] != "OnJobCreated" || all.calls[1] != "OnShutdown" {
		t.Fatalf("all: expected [OnJobCreated OnShutdown] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitJobCreated(ctx, &job.Job{})
	r.EmitJobStarted(ctx, &job.Job{})
	r.EmitJobSubmitted(ctx, &job.Job{})
	r.EmitJobDone(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, nil)
	r.EmitJobNotified(ctx, &job.Job{}, false)
	r.EmitJobRecovered(ctx, &job.Job{}, ext.RecoveryResumed)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	var order []string
	first := &orderExt{name: "first", order: &order}
	second := &orderExt{name: "second", order: &order}
	r.Register(first)
	r.Register(second)

	r.EmitJobDone(context.Background(), &job.Job{}, 0)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

type orderExt struct {
	name  string
	order *[]string
}

func (e *orderExt) Name() string { return e.name }

func (e *orderExt) OnJobDone(_ context.Context, _ *job.Job, _ time.Duration) error {
	*e.order = append(*e.order, e.name)
	return nil
}
