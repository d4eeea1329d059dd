// Package record models one dialogue beat as an ordered, string-keyed field map.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldRecord is one dialogue beat. Reads of absent fields return "".
type FieldRecord struct {
	keys   []string
	values map[string]string
	id     int
	index  int
}

// Builder populates a FieldRecord field by field until Finalize.
type Builder struct {
	rec  *FieldRecord
	done bool
}

// NewBuilder returns an empty record builder.
func NewBuilder() *Builder {
	return &Builder{rec: newRecord()}
}

func newRecord() *FieldRecord {
	return &FieldRecord{values: make(map[string]string), id: -1, index: -1}
}

// Set stores value under name. The first Set of a name fixes its position.
func (b *Builder) Set(name, value string) *Builder {
	if b.done {
		panic("record: set on finalized record")
	}
	b.rec.set(name, value)
	return b
}

// SetInt stores an integer field.
func (b *Builder) SetInt(name string, value int) *Builder {
	return b.Set(name, strconv.Itoa(value))
}

// Finalize recomputes the derived ID and index and hands the record over.
func (b *Builder) Finalize() *FieldRecord {
	if b.done {
		panic("record: finalize called twice")
	}
	b.done = true
	b.rec.finalize()
	return b.rec
}

func (r *FieldRecord) set(name, value string) {
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

func (r *FieldRecord) finalize() {
	r.id = -1
	if v, ok := r.Int(FieldID); ok {
		r.id = v
	}
	r.index = -1
	if v, ok := r.Int(FieldIndex); ok {
		r.index = v
	}
}

// Get returns the field value or "" when absent.
func (r *FieldRecord) Get(name string) string {
	if r == nil {
		return ""
	}
	return r.values[name]
}

// Has reports whether name was written, even as "".
func (r *FieldRecord) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.values[name]
	return ok
}

// Int parses a field as an integer.
func (r *FieldRecord) Int(name string) (int, bool) {
	raw := strings.TrimSpace(r.Get(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Keys returns field names in insertion order.
func (r *FieldRecord) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *FieldRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// ID is the integer form of the ID field, -1 if missing.
func (r *FieldRecord) ID() int {
	if r == nil {
		return -1
	}
	return r.id
}

// Index is the sequential position computed at finalize, -1 if missing.
func (r *FieldRecord) Index() int {
	if r == nil {
		return -1
	}
	return r.index
}

// Speaker returns the name tag.
func (r *FieldRecord) Speaker() string {
	return r.Get(FieldNameTag)
}

// Line returns the display text for lang, preferring the parsed column.
func (r *FieldRecord) Line(lang Lang) string {
	if lang == LangKorean {
		if v := r.Get(FieldParsedLineKOR); v != "" {
			return v
		}
		return r.Get(FieldLineKR)
	}
	if v := r.Get(FieldParsedLineENG); v != "" {
		return v
	}
	return r.Get(FieldLineENG)
}

// Auto reports whether the record advances without a choice.
func (r *FieldRecord) Auto() bool {
	return strings.EqualFold(r.Get(FieldAuto), True)
}

// HasCG reports whether the record unlocks a still image.
func (r *FieldRecord) HasCG() bool {
	return r.Get(FieldCGID) != ""
}

// MarshalJSON writes the record as an object with fields in insertion order.
func (r *FieldRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a record, keeping the field order of the document.
func (r *FieldRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	fresh := newRecord()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read record key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record key must be a string")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to read record field %s: %w", key, err)
		}
		fresh.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to close record: %w", err)
	}

	fresh.finalize()
	*r = *fresh
	return nil
}

// Sequence is one ordered batch of records produced by a single ingestion.
type Sequence []*FieldRecord

// IndexOfID returns the position of the record with the given ID or -1.
func (s Sequence) IndexOfID(id int) int {
	for i, rec := range s {
		if rec.ID() == id {
			return i
		}
	}
	return -1
}
