package domain

import (
	"math"
	"time"
)

// System-managed keys present on every persisted document.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is a single persisted record of any entity, keyed by field name.
// Values are normalised to string, float64, int64 or time.Time.
type Document map[string]any

// ID returns the store-assigned identity, or "" when the document is unsaved.
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a copy of d with every key of changes applied on top.
func (d Document) Merge(changes Document) Document {
	out := d.Clone()
	for k, v := range changes {
		out[k] = v
	}
	return out
}

// Float reads a numeric field as float64.
func (d Document) Float(name string) (float64, bool) {
	return numeric(d[name])
}

func numeric(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// String reads a string field.
func (d Document) String(name string) string {
	s, _ := d[name].(string)
	return s
}

// Time reads a date field.
func (d Document) Time(name string) (time.Time, bool) {
	t, ok := d[name].(time.Time)
	return t, ok
}

// RoundTo rounds v half away from zero to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// SameValue reports whether two field values are equal after normalisation.
// Numbers compare by value regardless of their integer/float representation.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, aNum := numeric(a)
	fb, bNum := numeric(b)
	if aNum && bNum {
		return fa == fb
	}
	ta, aTime := a.(time.Time)
	tb, bTime := b.(time.Time)
	if aTime && bTime {
		return ta.Equal(tb)
	}
	return a == b
}
