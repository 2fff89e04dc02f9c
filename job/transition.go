package job

import (
	"fmt"
	"time"

	"github.com/meemee/studio"
	"github.com/meemee/studio/id"
)

// CanTransition reports whether a job may move from one state to another.
// queued → failed exists so a job whose task panicked before claiming it
// can still be closed.
func CanTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateProcessing || to == StateFailed
	case StateProcessing:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Patch is a field merge applied by Store.UpdateJob. Zero-valued fields are
// left unchanged; fields are never cleared.
type Patch struct {
	// State, when set, must be a valid transition from the stored state.
	State State

	TaskHandle    string
	AssetURL      string
	FailureReason Reason
	FailureDetail string
	FailureRef    id.ErrorRef
	DeliveryRef   string

	// At stamps UpdatedAt. Zero means the store's current time.
	At time.Time
}

// Apply merges p into j in place. It returns an error wrapping
// studio.ErrInvalidState when the transition is not allowed or would break
// the asset/failure invariants; j is left untouched in that case.
func (p Patch) Apply(j *Job) error {
	next := *j

	if p.State != "" {
		if !CanTransition(j.State, p.State) {
			return fmt.Errorf("%w: %s → %s", studio.ErrInvalidState, j.State, p.State)
		}
		next.State = p.State
	}
	if p.TaskHandle != "" {
		next.TaskHandle = p.TaskHandle
	}
	if p.AssetURL != "" {
		next.AssetURL = p.AssetURL
	}
	if p.FailureReason != "" {
		next.FailureReason = p.FailureReason
	}
	if p.FailureDetail != "" {
		next.FailureDetail = p.FailureDetail
	}
	if !p.FailureRef.IsNil() {
		next.FailureRef = p.FailureRef
	}
	if p.DeliveryRef != "" {
		next.DeliveryRef = p.DeliveryRef
	}

	if (next.AssetURL != "") != (next.State == StateDone) {
		return fmt.Errorf("%w: asset url must be set iff done (state %s)", studio.ErrInvalidState, next.State)
	}
	if (next.FailureReason != "") != (next.State == StateFailed) {
		return fmt.Errorf("%w: failure reason must be set iff failed (state %s)", studio.ErrInvalidState, next.State)
	}

	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	next.UpdatedAt = at

	*j = next
	return nil
}

// LeavesQueue reports whether applying p to a job in state from removes it
// from the work queue.
func (p Patch) LeavesQueue(from State) bool {
	return from == StateQueued && p.State != "" && p.State != StateQueued
}
