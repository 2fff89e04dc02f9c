package job

import (
	"fmt"
	"strings"

	"github.com/meemee/studio"
	"github.com/meemee/studio/template"
)

// CreateRequest is the caller input for a new job. Exactly one of
// TemplateID or RawPrompt must be set.
type CreateRequest struct {
	OwnerID      int64  `json:"owner_id"`
	NotifyTarget int64  `json:"notify_target,omitempty"`
	TemplateID   string `json:"template_id,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Gender       string `json:"gender,omitempty"`
	RawPrompt    string `json:"raw_prompt,omitempty"`
}

// Validate checks the request shape and returns the parsed gender for
// template requests. Errors wrap studio.ErrInvalidRequest or
// studio.ErrUnknownGender.
func (r *CreateRequest) Validate() (template.Gender, error) {
	if r.OwnerID == 0 {
		return "", fmt.Errorf("%w: owner id is required", studio.ErrInvalidRequest)
	}

	hasTemplate := strings.TrimSpace(r.TemplateID) != ""
	hasRaw := strings.TrimSpace(r.RawPrompt) != ""
	switch {
	case hasTemplate && hasRaw:
		return "", fmt.Errorf("%w: template id and raw prompt are mutually exclusive", studio.ErrInvalidRequest)
	case !hasTemplate && !hasRaw:
		return "", fmt.Errorf("%w: template id or raw prompt is required", studio.ErrInvalidRequest)
	case hasRaw:
		return "", nil
	}

	if strings.TrimSpace(r.DisplayName) == "" {
		return "", fmt.Errorf("%w: display name is required", studio.ErrInvalidRequest)
	}
	return template.ParseGender(r.Gender)
}

// Target returns where the outcome is delivered, defaulting to the owner.
func (r *CreateRequest) Target() int64 {
	if r.NotifyTarget != 0 {
		return r.NotifyTarget
	}
	return r.OwnerID
}
