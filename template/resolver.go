package template

import (
	"fmt"
	"strings"

	"github.com/meemee/studio"
)

// Resolver turns catalog templates into fully resolved prompts.
type Resolver struct {
	catalog Catalog
}

// NewResolver returns a resolver over the given catalog.
func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Catalog returns the catalog the resolver reads from.
func (r *Resolver) Catalog() Catalog { return r.catalog }

// Lookup returns the catalog template with the given id.
func (r *Resolver) Lookup(templateID string) (*Template, error) {
	return r.catalog.Lookup(templateID)
}

// Resolve substitutes the display name and gender forms into the template's
// prompt. The result contains no known placeholder token; a display name
// that would reintroduce one is rejected with studio.ErrInvalidRequest.
func (r *Resolver) Resolve(templateID, displayName string, g Gender) (Node, error) {
	t, err := r.catalog.Lookup(templateID)
	if err != nil {
		return Node{}, err
	}
	if strings.ContainsAny(displayName, "{}") {
		return Node{}, fmt.Errorf("%w: display name must not contain braces", studio.ErrInvalidRequest)
	}

	table, err := NewTable(displayName, g)
	if err != nil {
		return Node{}, err
	}

	out := Substitute(t.Prompt, table)
	if left := Unresolved(out); len(left) > 0 {
		return Node{}, fmt.Errorf("%w: template %q: %s", studio.ErrUnresolvedToken, templateID, strings.Join(left, ", "))
	}
	return out, nil
}

// Raw wraps a user-supplied prompt. It is used verbatim.
func Raw(prompt string) Node {
	return Text(prompt)
}
