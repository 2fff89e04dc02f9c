package job

import (
	"github.com/meemee/studio"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/template"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateQueued means the job is persisted and waiting for submission.
	StateQueued State = "queued"
	// StateProcessing means the job was submitted or is being submitted.
	StateProcessing State = "processing"
	// StateDone means the renderer produced an asset.
	StateDone State = "done"
	// StateFailed means the job ended without an asset.
	StateFailed State = "failed"
)

// States lists every state in lifecycle order.
var States = []State{StateQueued, StateProcessing, StateDone, StateFailed}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateProcessing, StateDone, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether s is done or failed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Reason classifies why a job failed. Provider failures carry the
// provider's own reason text instead of one of these values.
type Reason string

const (
	ReasonSubmission         Reason = "submission-error"
	ReasonInsufficientCredit Reason = "insufficient-credit"
	ReasonProviderFailure    Reason = "provider-failure"
	ReasonPolling            Reason = "polling-error"
	ReasonTimeout            Reason = "timeout"
	ReasonRecoveryTimeout    Reason = "recovery-timeout"
	ReasonMissingAsset       Reason = "missing-asset"
	ReasonInternal           Reason = "internal-error"
)

// CustomTemplateName is the template name recorded for raw prompts.
const CustomTemplateName = "Custom"

// Job is one requested video generation.
type Job struct {
	studio.Entity

	ID           id.JobID        `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	NotifyTarget int64           `json:"notify_target"`
	TemplateID   string          `json:"template_id,omitempty"`
	TemplateName string          `json:"template_name,omitempty"`
	DisplayName  string          `json:"display_name,omitempty"`
	Gender       template.Gender `json:"gender,omitempty"`
	RawPrompt    string          `json:"raw_prompt,omitempty"`
	Prompt       template.Node   `json:"prompt"`
	State        State           `json:"state"`

	// TaskHandle is the renderer's id for the in-flight render. It is
	// recorded as soon as submission succeeds so recovery can resume
	// polling without resubmitting.
	TaskHandle string `json:"task_handle,omitempty"`

	AssetURL      string      `json:"asset_url,omitempty"`
	FailureReason Reason      `json:"failure_reason,omitempty"`
	FailureDetail string      `json:"failure_detail,omitempty"`
	FailureRef    id.ErrorRef `json:"failure_ref"`

	// DeliveryRef is the chat-side file id of the delivered asset.
	DeliveryRef string `json:"delivery_ref,omitempty"`
}

// Custom reports whether the job uses a raw prompt.
func (j *Job) Custom() bool {
	return j.RawPrompt != ""
}

// Clone returns a copy of j. The prompt tree is shared; it is never
// mutated after creation.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
