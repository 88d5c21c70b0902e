package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fishsupply/supply-system/internal/core/domain"
)

// dateLayouts are tried in order when a date arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// systemFields may be echoed back by clients and are silently ignored.
var systemFields = map[string]struct{}{
	domain.FieldID:        {},
	domain.FieldCreatedAt: {},
	domain.FieldUpdatedAt: {},
	"__v":                 {},
}

// schemaValidator turns raw client maps into normalised documents. Every
// violation in a request is collected before returning.
type schemaValidator struct {
	v   *validator.Validate
	now func() time.Time
}

func newSchemaValidator() *schemaValidator {
	v := validator.New()
	sv := &schemaValidator{v: v, now: time.Now}
	for tag, format := range domain.Formats {
		pattern := format.Pattern
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return pattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	if err := v.RegisterValidation("vehicle_year", sv.vehicleYear); err != nil {
		panic(fmt.Sprintf("validation: register vehicle_year: %v", err))
	}
	return sv
}

func (sv *schemaValidator) vehicleYear(fl validator.FieldLevel) bool {
	y := fl.Field().Int()
	return y >= domain.MinVehicleYear && y <= int64(sv.now().Year())
}

// prepare validates raw against the schema. On create, defaults are applied
// and every required field must be present; on update only the supplied
// fields are checked and returned. Derived fields are never taken from raw.
func (sv *schemaValidator) prepare(s *domain.Schema, raw map[string]any, create bool) (domain.Document, error) {
	verr := &domain.ValidationError{Entity: s.Entity}

	for _, name := range slices.Sorted(maps.Keys(raw)) {
		if _, ok := s.Field(name); ok || s.IsDerived(name) {
			continue
		}
		if _, ok := systemFields[name]; ok {
			continue
		}
		verr.Add(name, name+" is not a recognised field")
	}

	doc := make(domain.Document, len(s.Fields))
	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if present && !isBlank(v) {
			val, msg := sv.field(f, v)
			switch {
			case msg != "":
				verr.Add(f.Name, f.Name+" "+msg)
			case val != nil:
				doc[f.Name] = val
			case f.Required:
				verr.Add(f.Name, f.Name+" is required")
			}
			continue
		}

		if !create {
			if present && f.Required {
				verr.Add(f.Name, f.Name+" is required")
			}
			continue
		}
		if def := createDefault(s, f); def != nil {
			doc[f.Name] = def()
			continue
		}
		if f.Required {
			verr.Add(f.Name, f.Name+" is required")
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return doc, nil
}

// field normalises, coerces and checks one value. A nil value with an empty
// message means the input normalised to nothing.
func (sv *schemaValidator) field(f domain.Field, raw any) (any, string) {
	var val any
	switch f.Kind {
	case domain.KindString, domain.KindEnum:
		s, ok := asString(raw)
		if !ok {
			return nil, "must be a string"
		}
		for _, n := range f.Normalize {
			s = n(s)
		}
		if s == "" {
			return nil, ""
		}
		if f.Kind == domain.KindEnum && !f.Allows(s) {
			return nil, "must be one of: " + strings.Join(f.Enum, ", ")
		}
		val = s
	case domain.KindNumber:
		n, ok := asNumber(raw)
		if !ok {
			return nil, "must be a number"
		}
		val = n
	case domain.KindInteger:
		n, ok := asNumber(raw)
		if !ok || n != math.Trunc(n) {
			return nil, "must be a whole number"
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if n >= math.MaxInt64 || n < math.MinInt64 {
			return nil, "must be a whole number in range"
		}
		val = int64(n)
	case domain.KindDate:
		t, ok := asDate(raw)
		if !ok {
			return nil, "must be a valid date (YYYY-MM-DD)"
		}
		val = t
	}

	if f.Rules != "" {
		if err := sv.v.Var(val, f.Rules); err != nil {
			return nil, ruleMessage(err)
		}
	}
	return val, ""
}

func createDefault(s *domain.Schema, f domain.Field) func() any {
	if def, ok := s.CreateDefaults[f.Name]; ok {
		return def
	}
	return f.Default
}

// ruleMessage converts a validator failure into a human-readable message.
func ruleMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "vehicle_year":
		return fmt.Sprintf("must be between %d and the current year", domain.MinVehicleYear)
	}
	if format, ok := domain.Formats[fe.Tag()]; ok {
		return format.Message
	}
	return fmt.Sprintf("failed validation (%s)", fe.Tag())
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	var n float64
	switch v := v.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asDate(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
