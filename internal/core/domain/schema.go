package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// FieldKind is the semantic type of a declared field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindInteger
	KindDate
	KindEnum
)

func (k FieldKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	default:
		return "string"
	}
}

// Normalizer rewrites a raw string value before validation, uniqueness
// checks and persistence.
type Normalizer func(string) string

var (
	Trim      Normalizer = strings.TrimSpace
	Lowercase Normalizer = strings.ToLower
	Uppercase Normalizer = strings.ToUpper
)

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Format is a named pattern constraint that can be referenced from Field.Rules.
type Format struct {
	Pattern *regexp.Regexp
	Message string
}

// Formats holds the pattern constraints shared by entity schemas, keyed by
// the rule tag used in Field.Rules.
var Formats = map[string]Format{
	"supplier_regno": {
		Pattern: regexp.MustCompile(`^S\d{4}$`),
		Message: "must start with 'S' followed by exactly 4 digits (e.g., S1234)",
	},
	"item_code": {
		Pattern: regexp.MustCompile(`^I\d{4}$`),
		Message: "must be in format I1234 (I followed by 4 digits)",
	},
	"license_plate": {
		Pattern: regexp.MustCompile(`^[A-Z]{3}-\d{4}$`),
		Message: "must be in format XXX-XXXX (3 uppercase letters, hyphen, 4 digits)",
	},
	"certification_no": {
		Pattern: regexp.MustCompile(`^CT\d{3}$`),
		Message: "must start with 'CT' followed by 3 digits (e.g., CT123)",
	},
	"phone10": {
		Pattern: regexp.MustCompile(`^[0-9]{10}$`),
		Message: "must be a 10-digit number",
	},
}

// Field declares one client-writable field of an entity.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Unique fields may not share a non-empty value across the collection.
	// An optional unique field is sparse: documents without it never conflict.
	Unique    bool
	Normalize []Normalizer
	// Rules is a go-playground/validator tag string, e.g. "email" or "gte=1".
	Rules string
	Enum  []string
	// Default produces the value used on create when the field is omitted.
	Default func() any
}

// Allows reports whether v is one of the declared enum values.
func (f Field) Allows(v string) bool {
	for _, e := range f.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// DerivedField is a read-only field whose value is a pure function of other
// fields on the same document.
type DerivedField struct {
	Name    string
	Inputs  []string
	Compute func(Document) (any, error)
}

// SortKey orders list results.
type SortKey struct {
	Field string
	Desc  bool
}

// Schema is the declarative description of one entity type. It drives the
// generic validation, uniqueness and derivation pipeline.
type Schema struct {
	Entity     string
	Collection string
	Fields     []Field
	Derived    []DerivedField
	Sort       []SortKey
	// CreateDefaults override Field.Default on create only.
	CreateDefaults map[string]func() any
}

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// UniqueFields returns the fields carrying a uniqueness constraint.
func (s *Schema) UniqueFields() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Unique {
			out = append(out, f)
		}
	}
	return out
}

// IsDerived reports whether name is a derived field.
func (s *Schema) IsDerived(name string) bool {
	for _, d := range s.Derived {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Columns lists every client-visible field name in declaration order,
// followed by derived fields.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+len(s.Derived))
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	for _, d := range s.Derived {
		cols = append(cols, d.Name)
	}
	return cols
}

// Title is the capitalised entity name used in user-facing messages.
func (s *Schema) Title() string {
	if s.Entity == "" {
		return ""
	}
	return strings.ToUpper(s.Entity[:1]) + s.Entity[1:]
}

// Value returns a constant default.
func Value(v any) func() any {
	return func() any { return v }
}

// Now is a default that yields the current UTC time.
func Now() any {
	return time.Now().UTC()
}

// RoundedProduct derives name = round(a × b, places). A product that does
// not fit in a float64 is rejected.
func RoundedProduct(name, a, b string, places int) DerivedField {
	return DerivedField{
		Name:   name,
		Inputs: []string{a, b},
		Compute: func(d Document) (any, error) {
			x, ok := d.Float(a)
			if !ok {
				return nil, fmt.Errorf("%s: missing input %s", name, a)
			}
			y, ok := d.Float(b)
			if !ok {
				return nil, fmt.Errorf("%s: missing input %s", name, b)
			}
			v := RoundTo(x*y, places)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, fmt.Errorf("%s is too large (%s × %s)", name, a, b)
			}
			return v, nil
		},
	}
}
