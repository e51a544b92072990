package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key names a metadata field. Keys are case-sensitive.
type Key string

// Reserved keys with defined meaning across the tool. Any other key is a
// free-form extension and is stored verbatim.
const (
	TemperatureC   Key = "Temperature_C"
	TemperatureF   Key = "Temperature_F"
	CameraID       Key = "Camera_ID"
	DateTime       Key = "DateTime"
	Species        Key = "Species"
	ScientificName Key = "Scientific_Name"
	Count          Key = "Count"
	Behavior       Key = "Behavior"
	Location       Key = "Location"
	Weather        Key = "Weather"
	AIConfidence   Key = "AI_Confidence"
	Researcher     Key = "Researcher"
	Notes          Key = "Notes"
)

var reservedKeys = []Key{
	TemperatureC, TemperatureF, CameraID, DateTime,
	Species, ScientificName, Count, Behavior, Location, Weather,
	AIConfidence, Researcher, Notes,
}

// FooterKeys are the reserved keys read from the telemetry footer. Footer
// extraction only runs while at least one of them is missing.
var FooterKeys = []Key{TemperatureC, TemperatureF, CameraID}

// ReservedKeys returns the reserved keys in canonical order.
func ReservedKeys() []Key {
	out := make([]Key, len(reservedKeys))
	copy(out, reservedKeys)
	return out
}

// Reserved reports whether k is one of the reserved keys.
func (k Key) Reserved() bool {
	for _, r := range reservedKeys {
		if k == r {
			return true
		}
	}
	return false
}

// Fields is an unordered set of key/value pairs produced by an extractor.
// An empty Fields means nothing usable was found.
type Fields map[Key]string

// Empty reports whether f carries no non-blank value.
func (f Fields) Empty() bool {
	for _, v := range f {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sortedKeys orders reserved keys canonically, followed by extensions
// alphabetically, so that filling from a map is deterministic.
func (f Fields) sortedKeys() []Key {
	keys := make([]Key, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := reservedIndex(keys[i]), reservedIndex(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func reservedIndex(k Key) int {
	for i, r := range reservedKeys {
		if k == r {
			return i
		}
	}
	return len(reservedKeys)
}

// Record is an ordered metadata record. Keys keep the order in which they
// were first set, and blank values are never stored.
//
// The zero value is ready to use. Record is not safe for concurrent mutation.
type Record struct {
	order  []Key
	values map[Key]string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[Key]string)}
}

// RecordFrom builds a record from fields in deterministic key order.
func RecordFrom(f Fields) *Record {
	r := NewRecord()
	r.Fill(f)
	return r
}

// Set stores value under k, trimming surrounding whitespace. Blank values
// are ignored; use Delete to remove a key.
func (r *Record) Set(k Key, value string) {
	value = strings.TrimSpace(value)
	if k == "" || value == "" {
		return
	}
	if r.values == nil {
		r.values = make(map[Key]string)
	}
	if _, ok := r.values[k]; !ok {
		r.order = append(r.order, k)
	}
	r.values[k] = value
}

// Get returns the value stored under k.
func (r *Record) Get(k Key) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[k]
	return v, ok
}

// Value returns the value stored under k, or "".
func (r *Record) Value(k Key) string {
	v, _ := r.Get(k)
	return v
}

// Has reports whether k is present.
func (r *Record) Has(k Key) bool {
	_, ok := r.Get(k)
	return ok
}

// Delete removes k.
func (r *Record) Delete(k Key) {
	if _, ok := r.values[k]; !ok {
		return
	}
	delete(r.values, k)
	for i, o := range r.order {
		if o == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Fill adds every key of f that r does not already hold. Existing values are
// never overwritten.
func (r *Record) Fill(f Fields) {
	for _, k := range f.sortedKeys() {
		if !r.Has(k) {
			r.Set(k, f[k])
		}
	}
}

// Merge adds every key of lower that r does not already hold, keeping the
// order of lower for the added keys.
func (r *Record) Merge(lower *Record) {
	if lower == nil {
		return
	}
	for _, k := range lower.order {
		if !r.Has(k) {
			r.Set(k, lower.values[k])
		}
	}
}

// Missing returns the keys from want that are absent from r.
func (r *Record) Missing(want ...Key) []Key {
	var out []Key
	for _, k := range want {
		if !r.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []Key {
	if r == nil {
		return nil
	}
	out := make([]Key, len(r.order))
	copy(out, r.order)
	return out
}

// Extensions returns the non-reserved keys in insertion order.
func (r *Record) Extensions() []Key {
	var out []Key
	for _, k := range r.Keys() {
		if !k.Reserved() {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of stored keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Clone returns an independent copy of r.
func (r *Record) Clone() *Record {
	c := NewRecord()
	c.Merge(r)
	return c
}

// Fields returns the record as an unordered map.
func (r *Record) Fields() Fields {
	f := make(Fields, r.Len())
	for _, k := range r.Keys() {
		f[k] = r.values[k]
	}
	return f
}

// Equal reports whether both records hold the same keys and values,
// regardless of order.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for _, k := range r.Keys() {
		if v, ok := o.Get(k); !ok || v != r.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of string values, preserving the
// key order of the document. Numbers and booleans are kept as their literal
// text; null values are skipped.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata record must be a JSON object")
	}

	*r = Record{values: make(map[Key]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode value for %q: %w", key, err)
		}
		switch v := raw.(type) {
		case nil:
		case string:
			r.Set(Key(key), v)
		case json.Number:
			r.Set(Key(key), v.String())
		case bool:
			r.Set(Key(key), fmt.Sprint(v))
		default:
			return fmt.Errorf("metadata value for %q must be a scalar", key)
		}
	}

	_, err = dec.Token()
	return err
}
