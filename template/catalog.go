package template

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/meemee/studio"
)

// Status controls whether a template is offered to users.
type Status string

const (
	// StatusActive templates are listed and selectable.
	StatusActive Status = "active"
	// StatusSoon templates are listed as upcoming.
	StatusSoon Status = "soon"
	// StatusHidden templates resolve by id but are never listed.
	StatusHidden Status = "hidden"
)

// Template is one catalog entry.
type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Duration int    `json:"duration,omitempty"`
	Prompt   Node   `json:"prompt"`
}

// Listed reports whether the template appears in user-facing listings.
func (t *Template) Listed() bool {
	return t.Status == StatusActive || t.Status == StatusSoon
}

// Catalog is a read-only template lookup.
type Catalog interface {
	// Lookup returns the template with the given id or
	// studio.ErrTemplateNotFound.
	Lookup(templateID string) (*Template, error)

	// List returns every template ordered by id.
	List() []*Template
}

// MapCatalog is an in-memory Catalog. It is immutable after construction
// and safe for concurrent use.
type MapCatalog struct {
	templates map[string]*Template
}

var _ Catalog = (*MapCatalog)(nil)

// NewMapCatalog builds a catalog from the given templates. A template with
// an empty status is treated as active.
func NewMapCatalog(templates ...*Template) *MapCatalog {
	c := &MapCatalog{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		if t.Status == "" {
			t.Status = StatusActive
		}
		c.templates[t.ID] = t
	}
	return c
}

// Lookup implements Catalog.
func (c *MapCatalog) Lookup(templateID string) (*Template, error) {
	t, ok := c.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", studio.ErrTemplateNotFound, templateID)
	}
	return t, nil
}

// List implements Catalog.
func (c *MapCatalog) List() []*Template {
	out := make([]*Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Listed returns the templates of c that are offered to users.
func Listed(c Catalog) []*Template {
	var out []*Template
	for _, t := range c.List() {
		if t.Listed() {
			out = append(out, t)
		}
	}
	return out
}

// LoadDir reads every *.json file at the root of fsys into a catalog. A
// file without an "id" field is keyed by its base name.
func LoadDir(fsys fs.FS) (*MapCatalog, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("template: list catalog: %w", err)
	}

	templates := make([]*Template, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("template: read %s: %w", name, err)
		}
		var t Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("template: parse %s: %w", name, err)
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(path.Base(name), ".json")
		}
		if t.Prompt.IsZero() {
			return nil, fmt.Errorf("template: %s has no prompt", name)
		}
		templates = append(templates, &t)
	}
	return NewMapCatalog(templates...), nil
}
