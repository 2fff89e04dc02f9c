package template_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/meemee/studio"
	"github.com/meemee/studio/template"
)

const greetingJSON = `{
  "id": "greeting",
  "name": "Greeting",
  "status": "active",
  "duration": 10,
  "prompt": "{name} is a {gender_child}. {gender_pronoun} waves {gender_possessive} hand."
}`

const danceJSON = `{
  "name": "Dance",
  "status": "soon",
  "prompt": {
    "scene": "{gender_full_description} named {name} dances",
    "shots": [
      {"camera": "wide", "action": "{gender_pronoun} spins", "seconds": 4},
      {"camera": "close", "action": "we see {gender_object} smile ({gender_text}, {gender})", "loop": true}
    ],
    "style": null
  }
}`

const hiddenJSON = `{"id": "secret", "name": "Secret", "status": "hidden", "prompt": "{name}"}`

func testCatalog(t *testing.T) *template.MapCatalog {
	t.Helper()
	c, err := template.LoadDir(fstest.MapFS{
		"greeting.json": {Data: []byte(greetingJSON)},
		"dance.json":    {Data: []byte(danceJSON)},
		"secret.json":   {Data: []byte(hiddenJSON)},
		"README.md":     {Data: []byte("not a template")},
	})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	return c
}

func TestResolveString(t *testing.T) {
	r := template.NewResolver(testCatalog(t))

	got, err := r.Resolve("greeting", "Alex", template.Male)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "Alex is a boy. He waves his hand."
	if got.Render() != want {
		t.Errorf("Render() = %q, want %q", got.Render(), want)
	}
}

func TestResolveNested(t *testing.T) {
	r := template.NewResolver(testCatalog(t))

	got, err := r.Resolve("dance", "Maria", template.Female)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	scene, ok := got.Get("scene")
	if !ok {
		t.Fatal("expected scene field")
	}
	if want := "полная девочка славянской национальности named Maria dances"; scene.Text != want {
		t.Errorf("scene = %q, want %q", scene.Text, want)
	}

	shots, _ := got.Get("shots")
	if len(shots.Items) != 2 {
		t.Fatalf("shots = %d items, want 2", len(shots.Items))
	}
	action, _ := shots.Items[1].Get("action")
	if want := "we see her smile (девочка, female)"; action.Text != want {
		t.Errorf("action = %q, want %q", action.Text, want)
	}

	// Literals and key order survive the walk.
	rendered := got.Render()
	if !strings.HasPrefix(rendered, `{"scene":`) {
		t.Errorf("key order lost: %s", rendered)
	}
	for _, lit := range []string{`"seconds":4`, `"loop":true`, `"style":null`} {
		if !strings.Contains(rendered, lit) {
			t.Errorf("rendered prompt missing %s: %s", lit, rendered)
		}
	}
	if !json.Valid([]byte(rendered)) {
		t.Errorf("rendered prompt is not valid JSON: %s", rendered)
	}
}

func TestResolveIsTotal(t *testing.T) {
	c := testCatalog(t)
	r := template.NewResolver(c)

	for _, tpl := range c.List() {
		for _, g := range []template.Gender{template.Male, template.Female} {
			got, err := r.Resolve(tpl.ID, "Alex", g)
			if err != nil {
				t.Fatalf("Resolve(%s, %s): %v", tpl.ID, g, err)
			}
			if left := template.Unresolved(got); len(left) != 0 {
				t.Errorf("Resolve(%s, %s) left placeholders %v", tpl.ID, g, left)
			}
		}
	}
}

func TestResolveErrors(t *testing.T) {
	r := template.NewResolver(testCatalog(t))

	if _, err := r.Resolve("missing", "Alex", template.Male); !errors.Is(err, studio.ErrTemplateNotFound) {
		t.Errorf("missing template: err = %v, want ErrTemplateNotFound", err)
	}
	if _, err := r.Resolve("greeting", "Alex", template.Gender("other")); !errors.Is(err, studio.ErrUnknownGender) {
		t.Errorf("unknown gender: err = %v, want ErrUnknownGender", err)
	}
	if _, err := r.Resolve("greeting", "{gender}", template.Male); !errors.Is(err, studio.ErrInvalidRequest) {
		t.Errorf("braced name: err = %v, want ErrInvalidRequest", err)
	}
}

func TestSubstituteSinglePass(t *testing.T) {
	got := template.Substitute(template.Text("{a}{b}"), template.Table{"a": "{b}", "b": "x"})
	if got.Text != "{b}x" {
		t.Errorf("Text = %q, want %q", got.Text, "{b}x")
	}
}

func TestSubstituteDoesNotMutateInput(t *testing.T) {
	in := template.List(template.Text("{name}"), template.Map(template.Field{Key: "k", Value: template.Text("{name}")}))
	_ = template.Substitute(in, template.Table{"name": "Alex"})

	if in.Items[0].Text != "{name}" {
		t.Errorf("input list leaf mutated: %q", in.Items[0].Text)
	}
	if v, _ := in.Items[1].Get("k"); v.Text != "{name}" {
		t.Errorf("input map leaf mutated: %q", v.Text)
	}
}

func TestRawIsVerbatim(t *testing.T) {
	p := "a {name} stays {gender}"
	if got := template.Raw(p).Render(); got != p {
		t.Errorf("Render() = %q, want %q", got, p)
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		in      string
		want    template.Gender
		wantErr bool
	}{
		{"male", template.Male, false},
		{" Female ", template.Female, false},
		{"robot", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := template.ParseGender(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGender(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseGender(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalogListing(t *testing.T) {
	c := testCatalog(t)

	all := c.List()
	if len(all) != 3 {
		t.Fatalf("List() = %d templates, want 3", len(all))
	}
	if all[0].ID != "dance" {
		t.Errorf("List()[0] = %q, want dance (file stem id)", all[0].ID)
	}

	listed := template.Listed(c)
	if len(listed) != 2 {
		t.Fatalf("Listed() = %d templates, want 2", len(listed))
	}
	for _, tpl := range listed {
		if tpl.ID == "secret" {
			t.Error("hidden template listed")
		}
	}
}

func TestLoadDirRejectsMissingPrompt(t *testing.T) {
	_, err := template.LoadDir(fstest.MapFS{
		"empty.json": {Data: []byte(`{"name": "Empty"}`)},
	})
	if err == nil {
		t.Fatal("expected error for template without prompt")
	}
}

func TestNodeJSONRoundTrip(t *testing.T) {
	var n template.Node
	if err := json.Unmarshal([]byte(`{"b":[1,"x",{"c":false}],"a":"y"}`), &n); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if n.Kind != template.KindMap {
		t.Fatalf("Kind = %s, want map", n.Kind)
	}
	out, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := `{"b":[1,"x",{"c":false}],"a":"y"}`; string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}
