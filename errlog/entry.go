package errlog

import (
	"time"

	"github.com/meemee/studio/id"
)

// Entry is one persisted failure record.
type Entry struct {
	Ref       id.ErrorRef `json:"ref"`
	Message   string      `json:"message"`
	JobID     id.JobID    `json:"job_id"`
	Reason    string      `json:"reason,omitempty"`
	Source    string      `json:"source,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Record is the input to Service.LogError.
type Record struct {
	Message string
	JobID   id.JobID
	Reason  string
	Source  string
	Detail  string
}
