// Package placeholder substitutes {{key}} tokens in document templates.
package placeholder

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldMap is an ordered mapping from placeholder key to display string.
// Values are already formatted for display; the map never formats anything.
// The zero value is an empty map ready to use.
type FieldMap struct {
	keys   []string
	values map[string]string
}

// NewFieldMap builds a FieldMap from alternating key, value pairs.
// It panics on an odd argument count, which is a programming error.
func NewFieldMap(pairs ...string) *FieldMap {
	if len(pairs)%2 != 0 {
		panic("placeholder: NewFieldMap needs key/value pairs")
	}
	m := &FieldMap{}
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

// Set assigns value to key. A key set again keeps its original position.
func (m *FieldMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored for key.
func (m *FieldMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *FieldMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Merge copies every entry of other into m, in other's order.
func (m *FieldMap) Merge(other *FieldMap) {
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		m.Set(k, v)
	}
}

// MarshalJSON writes the map as a JSON object in insertion order.
func (m *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object keeping the key order of the document.
// Numbers and booleans are kept in their literal JSON spelling and null becomes "".
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("placeholder: fields must be a JSON object")
	}

	*m = FieldMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("placeholder: unexpected key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case string:
			m.Set(key, v)
		case json.Number:
			m.Set(key, v.String())
		case bool:
			m.Set(key, fmt.Sprint(v))
		case nil:
			m.Set(key, "")
		default:
			return fmt.Errorf("placeholder: field %q must be a string, number, boolean or null", key)
		}
	}

	_, err = dec.Token()
	return err
}
