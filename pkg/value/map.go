// SPDX-License-Identifier: MPL-2.0

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"gopkg.in/yaml.v3"
)

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. New keys are appended; existing keys keep their position.
func (m *Map) Set(key string, v Value) {
	if m.vals == nil {
		m.vals = make(map[string]Value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates entries in insertion order.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := NewMap()
	for k, v := range m.All() {
		out.Set(k, v.Clone())
	}
	return out
}

// Equal reports deep equality including key order.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	if !slices.Equal(m.Keys(), other.Keys()) {
		return false
	}
	for k, v := range m.All() {
		ov, _ := other.Get(k)
		if !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the map preserving key order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	decoded := v.Map()
	if decoded == nil {
		return fmt.Errorf("expected JSON object, got %s", v.Kind())
	}
	*m = *decoded
	return nil
}

func (m *Map) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	i := 0
	for k, v := range m.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		if err := writeJSONString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := v.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// MarshalYAML renders the map as an ordered YAML mapping.
func (m *Map) MarshalYAML() (any, error) {
	return m.yamlNode(), nil
}

func (m *Map) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for k, v := range m.All() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v.yamlNode(),
		)
	}
	return node
}

// EncodeIndent encodes v as indented JSON with a trailing newline, the way
// package.json files are conventionally written.
func EncodeIndent(v Value, indent string) ([]byte, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", indent); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
