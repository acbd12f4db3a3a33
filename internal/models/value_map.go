package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrReadOnly is returned when writing to a read-only ValueMap.
var ErrReadOnly = errors.New("value map is read-only")

// ValueMap is a string keyed map that remembers insertion order and
// marshals to JSON in that order. Nested objects are stored as *ValueMap.
//
// A ValueMap is not safe for concurrent writes; read-only copies produced
// by UnmodifiableCopy may be shared freely.
type ValueMap struct {
	keys     []string
	values   map[string]any
	readOnly bool
}

// valueMapper is implemented by the typed wrappers (Traits, Campaign, ...)
// so they are stored as their underlying map.
type valueMapper interface {
	valueMap() *ValueMap
}

// NewValueMap returns an empty, writable map.
func NewValueMap() *ValueMap {
	return &ValueMap{values: make(map[string]any)}
}

// ValueMapFrom copies m into a new ValueMap. Go maps have no order, so keys
// are inserted in the order the runtime yields them.
func ValueMapFrom(m map[string]any) *ValueMap {
	vm := NewValueMap()
	for k, v := range m {
		vm.set(k, normalize(v))
	}
	return vm
}

func (m *ValueMap) valueMap() *ValueMap { return m }

// Len returns the number of keys.
func (m *ValueMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *ValueMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// ReadOnly reports whether writes are rejected.
func (m *ValueMap) ReadOnly() bool {
	return m != nil && m.readOnly
}

// Get returns the raw value stored under key.
func (m *ValueMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *ValueMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Put stores value under key. Typed wrappers are stored as their
// underlying map.
func (m *ValueMap) Put(key string, value any) error {
	if m.readOnly {
		return ErrReadOnly
	}
	m.set(key, normalize(value))
	return nil
}

// PutValue is the fluent form of Put. Writes to a read-only map are dropped.
func (m *ValueMap) PutValue(key string, value any) *ValueMap {
	_ = m.Put(key, value)
	return m
}

// Remove deletes key, keeping the order of the remaining keys.
func (m *ValueMap) Remove(key string) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if _, ok := m.values[key]; !ok {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (m *ValueMap) set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// String returns the value under key when it is a string, else "".
func (m *ValueMap) String(key string) string {
	v, _ := m.Get(key)
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

// Bool returns the boolean under key, or def.
func (m *ValueMap) Bool(key string, def bool) bool {
	v, _ := m.Get(key)
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Float64 returns the numeric value under key, or def.
func (m *ValueMap) Float64(key string, def float64) float64 {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Int returns the numeric value under key truncated to int, or def.
func (m *ValueMap) Int(key string, def int) int {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// Map returns the nested map under key, or nil.
func (m *ValueMap) Map(key string) *ValueMap {
	v, _ := m.Get(key)
	vm, _ := v.(*ValueMap)
	return vm
}

// Copy returns a writable deep copy.
func (m *ValueMap) Copy() *ValueMap {
	return m.clone(false)
}

// UnmodifiableCopy returns a deep copy in which this map and every nested
// map reject writes. Later changes to m are not visible through the copy.
func (m *ValueMap) UnmodifiableCopy() *ValueMap {
	return m.clone(true)
}

func (m *ValueMap) clone(readOnly bool) *ValueMap {
	if m == nil {
		return nil
	}
	out := &ValueMap{
		keys:     make([]string, len(m.keys)),
		values:   make(map[string]any, len(m.values)),
		readOnly: readOnly,
	}
	copy(out.keys, m.keys)
	for k, v := range m.values {
		out.values[k] = cloneValue(v, readOnly)
	}
	return out
}

func cloneValue(v any, readOnly bool) any {
	switch t := v.(type) {
	case *ValueMap:
		return t.clone(readOnly)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e, readOnly)
		}
		return out
	default:
		return v
	}
}

// normalize converts wrappers and plain Go maps into *ValueMap and copies
// slices, so stored values never alias caller-owned containers. Read-only
// maps stay read-only and a nil wrapper is stored as nil.
func normalize(v any) any {
	switch t := v.(type) {
	case valueMapper:
		vm := t.valueMap()
		if vm == nil {
			return nil
		}
		if vm.ReadOnly() {
			return vm.UnmodifiableCopy()
		}
		return vm.Copy()
	case map[string]any:
		return ValueMapFrom(t)
	case map[string]string:
		vm := NewValueMap()
		for k, s := range t {
			vm.set(k, s)
		}
		return vm
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// ToMap returns a plain nested map copy, useful for serializers that do not
// care about order.
func (m *ValueMap) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plain(m.values[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *ValueMap:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes keys in insertion order.
func (m *ValueMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order. Numbers are decoded as
// float64, nested objects as *ValueMap.
func (m *ValueMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("value map: expected object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*m = *decoded
	return nil
}

func decodeObject(dec *json.Decoder) (*ValueMap, error) {
	vm := NewValueMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("value map: expected key, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		vm.set(key, v)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return vm, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("value map: unexpected delimiter %v", t)
	default:
		return t, nil
	}
}
