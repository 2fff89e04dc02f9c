// Package renderer defines the contract with the external video renderer.
//
// A renderer accepts a prompt and returns an opaque task handle; the handle
// is then polled until the render reaches a terminal phase. Provider errors
// are normalized into a [Category] so billing problems on the provider side
// ([CategoryInsufficientCredit]) can be told apart from everything else.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Phase is the normalized render progress reported by Status.
type Phase string

const (
	PhaseQueued  Phase = "queued"
	PhaseRunning Phase = "running"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// Terminal reports whether p ends polling.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseFailure
}

// Category classifies provider errors and failures.
type Category string

const (
	// CategoryGeneric covers every provider problem without special meaning.
	CategoryGeneric Category = "generic"
	// CategoryInsufficientCredit means the provider account ran out of
	// credit. It is surfaced verbatim as the job failure reason.
	CategoryInsufficientCredit Category = "insufficient-credit"
)

// Status is one poll response.
type Status struct {
	Phase Phase

	// AssetURLs holds the result candidates of a successful render.
	AssetURLs []string

	// Reason is the provider's failure text for PhaseFailure.
	Reason string

	// Category classifies a PhaseFailure.
	Category Category
}

// AssetURL returns the primary asset: the first non-empty candidate.
func (s Status) AssetURL() string {
	for _, u := range s.AssetURLs {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// Client submits prompts and reports render status.
type Client interface {
	// Submit starts a render and returns the provider task handle.
	Submit(ctx context.Context, prompt string) (string, error)

	// Status reports the progress of a previously submitted render. An
	// error means the status could not be determined (transport or parse
	// failure), not that the render failed.
	Status(ctx context.Context, handle string) (Status, error)
}

// ErrInsufficientCredit matches, via errors.Is, any ProviderError in
// CategoryInsufficientCredit.
var ErrInsufficientCredit = errors.New("renderer: insufficient provider credit")

// ProviderError is a request the provider answered with an error code.
type ProviderError struct {
	Code     int
	Message  string
	Category Category
}

// Error implements error.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("renderer: provider error %d: %s", e.Code, e.Message)
}

// Is reports whether target is ErrInsufficientCredit and e carries that
// category.
func (e *ProviderError) Is(target error) bool {
	return target == ErrInsufficientCredit && e.Category == CategoryInsufficientCredit
}

// Classify returns the category of err. Errors that are not provider
// errors are generic.
func Classify(err error) Category {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Category != "" {
		return pe.Category
	}
	return CategoryGeneric
}
