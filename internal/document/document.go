// Package document holds the portable form of an archive: an ordered nested
// mapping whose leaves are scalars and whose inner nodes are documents.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/hive/internal/errors"
)

// Separator joins nested keys in a flat document.
const Separator = "/"

// Document is an ordered mapping from key to either a scalar leaf or a
// nested *Document. Keys keep insertion order.
type Document struct {
	entries *orderedmap.OrderedMap[string, any]
}

// New returns an empty document.
func New() *Document {
	return &Document{entries: orderedmap.New[string, any]()}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (d *Document) Set(key string, value any) {
	d.entries.Set(key, value)
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	return d.entries.Get(key)
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	return d.entries.Len()
}

// Keys returns the top-level keys in order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every top-level entry in order, stopping at the first error.
func (d *Document) Each(fn func(key string, value any) error) error {
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// Envelope wraps d in a single-key document.
func Envelope(name string, d *Document) *Document {
	env := New()
	env.Set(name, d)
	return env
}

// FromMap converts plain nested maps into a document. Keys are sorted since
// Go maps carry no order.
func FromMap(m map[string]any) *Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := New()
	for _, k := range keys {
		if nested, ok := m[k].(map[string]any); ok {
			d.Set(k, FromMap(nested))
			continue
		}
		d.Set(k, m[k])
	}
	return d
}

// Map converts the document into plain nested maps.
func (d *Document) Map() map[string]any {
	m := make(map[string]any, d.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		if nested, ok := pair.Value.(*Document); ok {
			m[pair.Key] = nested.Map()
			continue
		}
		m[pair.Key] = pair.Value
	}
	return m
}

// Equal reports whether a and b hold the same keys and leaves, ignoring order.
// Leaves compare by their text form, so "3" equals json.Number("3").
func Equal(a, b *Document) bool {
	if a.Len() != b.Len() {
		return false
	}
	for pair := a.entries.Oldest(); pair != nil; pair = pair.Next() {
		other, ok := b.Get(pair.Key)
		if !ok {
			return false
		}
		switch v := pair.Value.(type) {
		case *Document:
			o, ok := other.(*Document)
			if !ok || !Equal(v, o) {
				return false
			}
		default:
			if _, nested := other.(*Document); nested {
				return false
			}
			if fmt.Sprint(v) != fmt.Sprint(other) {
				return false
			}
		}
	}
	return true
}

// Flatten joins nested keys with Separator into a single-level document.
// Every flat key starts with Separator. Nesting is detected by value shape:
// both *Document and map[string]any values are descended into. An empty
// nested document has no leaves and so yields no key: Unflatten cannot
// restore it.
func Flatten(d *Document) *Document {
	flat := New()
	flattenInto(flat, d, "")
	return flat
}

func flattenInto(flat, d *Document, parent string) {
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		key := parent + Separator + pair.Key
		switch v := pair.Value.(type) {
		case *Document:
			flattenInto(flat, v, key)
		case map[string]any:
			flattenInto(flat, FromMap(v), key)
		default:
			flat.Set(key, v)
		}
	}
}

// Unflatten rebuilds the nested document from Separator-joined keys.
func Unflatten(flat *Document) (*Document, error) {
	root := New()
	for pair := flat.entries.Oldest(); pair != nil; pair = pair.Next() {
		parts := splitKey(pair.Key)
		if len(parts) == 0 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid flat key %q", pair.Key))
		}

		node := root
		for _, part := range parts[:len(parts)-1] {
			existing, ok := node.Get(part)
			if !ok {
				child := New()
				node.Set(part, child)
				node = child
				continue
			}
			child, ok := existing.(*Document)
			if !ok {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("flat key %q descends through a leaf", pair.Key))
			}
			node = child
		}

		last := parts[len(parts)-1]
		if existing, ok := node.Get(last); ok {
			if _, nested := existing.(*Document); nested {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("flat key %q collides with a nested key", pair.Key))
			}
		}
		node.Set(last, pair.Value)
	}
	return root, nil
}

// splitKey splits a flat key, dropping empty segments.
func splitKey(key string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(key); i++ {
		if i == len(key) || key[i:i+1] == Separator {
			if i > start {
				parts = append(parts, key[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// MarshalJSON writes the document as a JSON object in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := marshalNoEscape(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := marshalNoEscape(pair.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON renders the document, indented when indent is non-empty.
func (d *Document) JSON(indent string) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", indent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalNoEscape marshals v without HTML-escaping <, > and &.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order at every level.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// MarshalYAML renders the document as an ordered YAML mapping.
func (d *Document) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.Key}

		var value *yaml.Node
		switch v := pair.Value.(type) {
		case *Document:
			nested, err := v.MarshalYAML()
			if err != nil {
				return nil, err
			}
			value = nested.(*yaml.Node)
		case string:
			value = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
		default:
			value = &yaml.Node{}
			if err := value.Encode(v); err != nil {
				return nil, err
			}
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}
