package param

import (
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Layouts used to interpret date and datetime parameters.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Value is a validated parameter value tagged by its Type.
// The zero Value is null.
type Value struct {
	typ   Type
	valid bool
	i     int64
	f     float64
	b     bool
	s     string
	u     uuid.UUID
	j     any
}

// Null is the sentinel for an absent value.
var Null = Value{}

// IntValue wraps an int parameter.
func IntValue(v int64) Value { return Value{typ: TypeInt, valid: true, i: v} }

// FloatValue wraps a float parameter.
func FloatValue(v float64) Value { return Value{typ: TypeFloat, valid: true, f: v} }

// BoolValue wraps a bool parameter.
func BoolValue(v bool) Value { return Value{typ: TypeBool, valid: true, b: v} }

// StringValue wraps a non-empty, trimmed string parameter.
func StringValue(v string) Value { return Value{typ: TypeString, valid: true, s: v} }

// CharValue wraps a single-character parameter.
func CharValue(v string) Value { return Value{typ: TypeChar, valid: true, s: v} }

// Hex64Value wraps a 64-digit hex digest. Validation lowercases it.
func Hex64Value(v string) Value { return Value{typ: TypeHex64, valid: true, s: v} }

// DateValue wraps a YYYY-MM-DD date in its validated text form.
func DateValue(v string) Value { return Value{typ: TypeDate, valid: true, s: v} }

// DateTimeValue wraps a "YYYY-MM-DD HH:MM:SS" datetime in its validated text form.
func DateTimeValue(v string) Value { return Value{typ: TypeDateTime, valid: true, s: v} }

// UUIDValue wraps a version 4 UUID.
func UUIDValue(v uuid.UUID) Value { return Value{typ: TypeUUID, valid: true, u: v} }

// JSONValue wraps a decoded JSON document. Integral numbers are int64, others float64.
func JSONValue(v any) Value { return Value{typ: TypeJSON, valid: true, j: v} }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return !v.valid }

// Type returns the type tag, or "" for null.
func (v Value) Type() Type { return v.typ }

func (v Value) Int() (int64, bool) {
	return v.i, v.valid && v.typ == TypeInt
}

// Float returns the numeric value of int and float parameters.
func (v Value) Float() (float64, bool) {
	switch {
	case !v.valid:
		return 0, false
	case v.typ == TypeFloat:
		return v.f, true
	case v.typ == TypeInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.valid && v.typ == TypeBool
}

// Text returns the canonical text of textual values: strings, chars, digests,
// dates, datetimes and UUIDs.
func (v Value) Text() (string, bool) {
	if !v.valid {
		return "", false
	}
	switch v.typ {
	case TypeString, TypeChar, TypeHex64, TypeDate, TypeDateTime:
		return v.s, true
	case TypeUUID:
		return v.u.String(), true
	default:
		return "", false
	}
}

func (v Value) UUID() (uuid.UUID, bool) {
	return v.u, v.valid && v.typ == TypeUUID
}

// JSON returns the decoded document of a json parameter.
func (v Value) JSON() (any, bool) {
	return v.j, v.valid && v.typ == TypeJSON
}

// Time parses date and datetime values. The pattern check at validation is syntactic,
// so a value such as 2023-02-31 validates but fails here.
func (v Value) Time() (time.Time, error) {
	if !v.valid {
		return time.Time{}, strconv.ErrSyntax
	}
	switch v.typ {
	case TypeDate:
		return time.Parse(DateLayout, v.s)
	case TypeDateTime:
		return time.Parse(DateTimeLayout, v.s)
	default:
		return time.Time{}, strconv.ErrSyntax
	}
}

// Any returns the value as a plain Go value (nil for null).
func (v Value) Any() any {
	if !v.valid {
		return nil
	}
	switch v.typ {
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeBool:
		return v.b
	case TypeUUID:
		return v.u.String()
	case TypeJSON:
		return v.j
	default:
		return v.s
	}
}

// Equal compares canonical values. Int and float compare numerically.
func (v Value) Equal(o Value) bool {
	if v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	if a, ok := v.Float(); ok {
		b, ok := o.Float()
		return ok && a == b
	}
	if v.typ == TypeJSON || o.typ == TypeJSON {
		return v.typ == o.typ && reflect.DeepEqual(v.j, o.j)
	}
	if v.typ == TypeBool || o.typ == TypeBool {
		return v.typ == o.typ && v.b == o.b
	}
	a, okA := v.Text()
	b, okB := o.Text()
	return okA && okB && a == b
}

// MarshalJSON encodes the plain value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Values holds validated parameters keyed by Spec.Key.
type Values map[string]Value

// Get returns the value for key, or Null.
func (vs Values) Get(key string) Value {
	if vs == nil {
		return Null
	}
	return vs[key]
}

// Has reports whether key holds a non-null value.
func (vs Values) Has(key string) bool {
	return !vs.Get(key).IsNull()
}

// String returns the text of key, or "" when it is null or not textual.
func (vs Values) String(key string) string {
	s, _ := vs.Get(key).Text()
	return s
}

func (vs Values) Int(key string) int64 {
	i, _ := vs.Get(key).Int()
	return i
}

func (vs Values) Float(key string) float64 {
	f, _ := vs.Get(key).Float()
	return f
}

func (vs Values) Bool(key string) bool {
	b, _ := vs.Get(key).Bool()
	return b
}

func (vs Values) JSON(key string) any {
	j, _ := vs.Get(key).JSON()
	return j
}

// Strings returns a json parameter decoded as a list of strings.
// Non-string elements are skipped.
func (vs Values) Strings(key string) []string {
	list, ok := vs.JSON(key).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
