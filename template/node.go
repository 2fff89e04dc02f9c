package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Kind tags the shape of a Node.
type Kind uint8

const (
	// KindString is a string leaf. Only string leaves are substituted.
	KindString Kind = iota + 1
	// KindList is an ordered list of nodes.
	KindList
	// KindMap is an object whose key order is preserved.
	KindMap
	// KindLiteral is a non-string JSON scalar kept as raw bytes.
	KindLiteral
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindLiteral:
		return "literal"
	default:
		return "invalid"
	}
}

// Field is one key/value pair of a map node.
type Field struct {
	Key   string
	Value Node
}

// Node is a prompt tree. The zero Node is empty and encodes as null.
type Node struct {
	Kind   Kind
	Text   string
	Items  []Node
	Fields []Field
	Raw    json.RawMessage
}

// Text returns a string leaf.
func Text(s string) Node { return Node{Kind: KindString, Text: s} }

// List returns a list node.
func List(items ...Node) Node { return Node{Kind: KindList, Items: items} }

// Map returns a map node with the given ordered fields.
func Map(fields ...Field) Node { return Node{Kind: KindMap, Fields: fields} }

// IsZero reports whether n is the empty node.
func (n Node) IsZero() bool { return n.Kind == 0 }

// Get returns the value stored under key in a map node.
func (n Node) Get(key string) (Node, bool) {
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Node{}, false
}

// Render returns the prompt text sent to the renderer: string leaves are
// returned as-is, structured prompts as compact JSON.
func (n Node) Render() string {
	if n.Kind == KindString {
		return n.Text
	}
	b, err := n.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler. Map key order is preserved.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) encode(buf *bytes.Buffer) error {
	switch n.Kind {
	case 0:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(n.Text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindLiteral:
		if len(n.Raw) == 0 {
			buf.WriteString("null")
			return nil
		}
		buf.Write(n.Raw)
	default:
		return fmt.Errorf("template: cannot encode node kind %d", n.Kind)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeNode(dec)
	if err != nil {
		return fmt.Errorf("template: decode prompt: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("template: decode prompt: trailing data")
	}
	*n = parsed
	return nil
}

func decodeNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			list := Node{Kind: KindList, Items: []Node{}}
			for dec.More() {
				item, err := decodeNode(dec)
				if err != nil {
					return Node{}, err
				}
				list.Items = append(list.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Node{}, err
			}
			return list, nil
		case '{':
			obj := Node{Kind: KindMap, Fields: []Field{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Node{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				value, err := decodeNode(dec)
				if err != nil {
					return Node{}, err
				}
				obj.Fields = append(obj.Fields, Field{Key: key, Value: value})
			}
			if _, err := dec.Token(); err != nil {
				return Node{}, err
			}
			return obj, nil
		default:
			return Node{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return Text(t), nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindLiteral, Raw: raw}, nil
	}
}
