package template

import "strings"

// Table maps placeholder names (without braces) to replacement text.
type Table map[string]string

// Token returns the placeholder token for name, e.g. "{name}".
func Token(name string) string { return "{" + name + "}" }

func (t Table) replacer() *strings.Replacer {
	pairs := make([]string, 0, len(t)*2)
	for name, value := range t {
		pairs = append(pairs, Token(name), value)
	}
	return strings.NewReplacer(pairs...)
}

// Substitute returns a copy of n with every placeholder from t replaced in
// every string leaf. All tokens are replaced in a single pass, so a
// replacement value is never itself rescanned. Map keys and literals are
// left untouched.
func Substitute(n Node, t Table) Node {
	return walk(n, t.replacer())
}

func walk(n Node, r *strings.Replacer) Node {
	switch n.Kind {
	case KindString:
		return Text(r.Replace(n.Text))
	case KindList:
		items := make([]Node, len(n.Items))
		for i, item := range n.Items {
			items[i] = walk(item, r)
		}
		return Node{Kind: KindList, Items: items}
	case KindMap:
		fields := make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = Field{Key: f.Key, Value: walk(f.Value, r)}
		}
		return Node{Kind: KindMap, Fields: fields}
	default:
		return n
	}
}

// Unresolved returns the known placeholder tokens still present in any
// string leaf of n, in first-seen order. An empty result means resolution
// was total.
func Unresolved(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	visit(n, func(s string) {
		for _, name := range Placeholders {
			tok := Token(name)
			if !seen[tok] && strings.Contains(s, tok) {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	})
	return out
}

func visit(n Node, fn func(string)) {
	switch n.Kind {
	case KindString:
		fn(n.Text)
	case KindList:
		for _, item := range n.Items {
			visit(item, fn)
		}
	case KindMap:
		for _, f := range n.Fields {
			visit(f.Value, fn)
		}
	}
}
