// SPDX-License-Identifier: MPL-2.0

// Package value provides an ordered, JSON-shaped value type used for package
// descriptors, build directives and plugin settings.
//
// Maps remember insertion order so that documents survive a
// decode/encode round trip with their key order intact, and the whole tree
// can be deep-merged with [SoftMerge].
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	// KindNull is the JSON null (and the zero Value).
	KindNull Kind = iota
	// KindBool is a boolean scalar.
	KindBool
	// KindNumber is a numeric scalar kept in its textual form.
	KindNumber
	// KindString is a string scalar.
	KindString
	// KindList is an ordered list of values.
	KindList
	// KindMap is an ordered string-keyed map.
	KindMap
)

type (
	// Value is a tagged union over null, bool, number, string, list and map.
	// The zero Value is null.
	Value struct {
		kind Kind
		b    bool
		s    string
		list []Value
		m    *Map
	}

	// Map is a string-keyed map that preserves insertion order.
	Map struct {
		keys []string
		vals map[string]Value
	}
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a number in textual form (e.g. "1", "2.5e3").
func Number(n string) Value { return Value{kind: KindNumber, s: n} }

// Int wraps an integer.
func Int(n int) Value { return Number(strconv.Itoa(n)) }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a list of values.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Strings wraps a list of strings.
func Strings(items ...string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return List(list...)
}

// FromMap wraps a map. A nil map becomes an empty map.
func FromMap(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// FromAny converts plain Go data (as produced by encoding/json or a script
// host) into a Value. Map keys of map[string]any are sorted since Go maps
// carry no order.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case *Map:
		return FromMap(x), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		return Number(string(x)), nil
	case int:
		return Int(x), nil
	case int64:
		return Number(strconv.FormatInt(x, 10)), nil
	case float64:
		return Number(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case []string:
		return Strings(x...), nil
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return List(items...), nil
	case map[string]string:
		m := NewMap()
		for _, k := range slices.Sorted(maps.Keys(x)) {
			m.Set(k, String(x[k]))
		}
		return FromMap(m), nil
	case map[string]any:
		m := NewMap()
		for _, k := range slices.Sorted(maps.Keys(x)) {
			iv, err := FromAny(x[k])
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			m.Set(k, iv)
		}
		return FromMap(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content and whether v is a string.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Truthy returns the bool content; non-bool values are false.
func (v Value) Truthy() bool {
	return v.kind == KindBool && v.b
}

// Map returns the map content, or nil if v is not a map.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// List returns the list content, or nil if v is not a list.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// AsStrings interprets v as a string or a list of strings. Non-string list
// items are skipped.
func (v Value) AsStrings() []string {
	switch v.kind {
	case KindString:
		return []string{v.s}
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			if s, ok := item.Str(); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindMap:
		return FromMap(v.m.Clone())
	default:
		return v
	}
}

// Interface converts v into plain Go data: map[string]any, []any, string,
// bool, float64 (or json.Number when not representable) and nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f
		}
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for k, item := range v.m.All() {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality, including map key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber, KindString:
		return v.s == other.s
	case KindList:
		return slices.EqualFunc(v.list, other.list, Value.Equal)
	case KindMap:
		return v.m.Equal(other.m)
	}
	return false
}

// MarshalJSON encodes v preserving map key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.s)
	case KindString:
		return writeJSONString(buf, v.s)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		return v.m.writeJSON(buf)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder.Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes JSON preserving map key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data after JSON value")
	}
	*v = parsed
	return nil
}

// Parse decodes a JSON document into a Value.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(string(t)), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			if items == nil {
				items = []Value{}
			}
			return List(items...), nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, fmt.Errorf("key %q: %w", key, err)
				}
				m.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return FromMap(m), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}

// MarshalYAML renders v as an ordered YAML node.
func (v Value) MarshalYAML() (any, error) {
	return v.yamlNode(), nil
}

func (v Value) yamlNode() *yaml.Node {
	switch v.kind {
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindNumber:
		tag := "!!int"
		if strings.ContainsAny(v.s, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.s}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
	case KindList:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.list {
			node.Content = append(node.Content, item.yamlNode())
		}
		return node
	case KindMap:
		return v.m.yamlNode()
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
