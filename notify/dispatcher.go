package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meemee/studio/job"
)

// ErrNotTerminal is returned when asked to notify about a job that is
// still queued or processing.
var ErrNotTerminal = errors.New("studio/notify: job is not terminal")

// Notifier reports a terminal job to its owner.
type Notifier interface {
	Notify(ctx context.Context, j *job.Job) (Result, error)
}

// Result describes what was delivered.
type Result struct {
	// DeliveryRef is the media reference returned by inline delivery.
	// Empty when the link fallback was used or the job failed.
	DeliveryRef string
	// Fallback is true when inline delivery failed and the link was sent.
	Fallback bool
}

// Compile-time interface check.
var _ Notifier = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMessages replaces the default texts.
func WithMessages(m Messages) Option {
	return func(d *Dispatcher) { d.msgs = m }
}

// Dispatcher renders terminal-state messages and sends them on a Channel.
type Dispatcher struct {
	ch     Channel
	msgs   Messages
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher sending on ch.
func NewDispatcher(ch Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ch:     ch,
		msgs:   DefaultMessages(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Notify sends the done or failed message for j to its notify target.
func (d *Dispatcher) Notify(ctx context.Context, j *job.Job) (Result, error) {
	target := j.NotifyTarget
	if target == 0 {
		target = j.OwnerID
	}

	switch j.State {
	case job.StateDone:
		return d.notifyDone(ctx, target, j)
	case job.StateFailed:
		if err := d.ch.SendText(ctx, target, d.msgs.Failed, d.msgs.failedKeyboard()); err != nil {
			return Result{}, fmt.Errorf("studio/notify: failure message: %w", err)
		}
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrNotTerminal, j.State)
	}
}

func (d *Dispatcher) notifyDone(ctx context.Context, target int64, j *job.Job) (Result, error) {
	kb := d.msgs.doneKeyboard(j.ID.String())

	ref, err := d.ch.SendVideo(ctx, target, j.AssetURL, d.msgs.DoneCaption, kb)
	if err == nil {
		return Result{DeliveryRef: ref}, nil
	}

	d.logger.Warn("inline video delivery failed, sending link",
		slog.String("job_id", j.ID.String()),
		slog.String("error", err.Error()),
	)

	if linkErr := d.ch.SendText(ctx, target, d.msgs.link(j.AssetURL), kb); linkErr != nil {
		return Result{}, fmt.Errorf("studio/notify: link fallback: %w", errors.Join(err, linkErr))
	}
	return Result{Fallback: true}, nil
}
