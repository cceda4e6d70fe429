// Package param describes method parameter schemas and validates raw caller input against them.
// It is pure: no I/O, no logging, no shared state.
package param

// Type tags the semantic type of a parameter.
type Type string

const (
	TypeInt      Type = "int"
	TypeFloat    Type = "float"
	TypeDate     Type = "date"
	TypeDateTime Type = "datetime"
	TypeBool     Type = "bool"
	TypeChar     Type = "char"
	TypeString   Type = "string"
	TypeHex64    Type = "hex64"
	TypeUUID     Type = "uuid"
	TypeJSON     Type = "json"
)

// Valid reports whether t is a known type tag.
func (t Type) Valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeDate, TypeDateTime, TypeBool,
		TypeChar, TypeString, TypeHex64, TypeUUID, TypeJSON:
		return true
	default:
		return false
	}
}

// ErrorKind is the machine-readable reason a parameter was rejected.
type ErrorKind string

const (
	KindMissing ErrorKind = "PARAM_MISSING"
	KindType    ErrorKind = "PARAM_TYPE"
	KindRange   ErrorKind = "PARAM_RANGE"
)

// Spec describes one input field of a method.
//
// Min and Max apply to numeric types. MinLength and MaxLength count runes of the
// trimmed text and apply to textual types (string, char, hex64, uuid, date, datetime).
// NullValues lists raw textual forms that force the field to null.
type Spec struct {
	Key        string
	Type       Type
	Optional   bool
	Default    *Value
	NullValues []string
	Min        *float64
	Max        *float64
	MinLength  *int
	MaxLength  *int
	Allowed    []Value
}

// Bound returns a pointer to v for use as Spec.Min or Spec.Max.
func Bound(v float64) *float64 { return &v }

// Length returns a pointer to n for use as Spec.MinLength or Spec.MaxLength.
func Length(n int) *int { return &n }

// DefaultTo returns a pointer to v for use as Spec.Default.
func DefaultTo(v Value) *Value { return &v }

func (s Spec) isNullText(text string) bool {
	for _, n := range s.NullValues {
		if n == text {
			return true
		}
	}
	return false
}
