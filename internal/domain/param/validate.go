package param

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	reInt   = regexp.MustCompile(`^-?[0-9]+$`)
	reFloat = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	reHex64 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	reUUID4 = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

	// Month and day ranges are syntactic only: 02-31 passes.
	reDate     = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)
	reDateTime = regexp.MustCompile(
		`^[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01]) ([01][0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9]$`,
	)
)

// Result is the outcome of validating one parameter.
type Result struct {
	Accepted bool
	Value    Value
	Reason   string
	Kind     ErrorKind
}

func accept(v Value) Result { return Result{Accepted: true, Value: v} }

func reject(kind ErrorKind, format string, args ...any) Result {
	return Result{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the input for spec.Key and coerces it to its canonical typed form.
func Validate(spec Spec, inputs map[string]any) Result {
	raw, present := inputs[spec.Key]
	if !present || raw == nil {
		if !spec.Optional {
			return reject(KindMissing, "parameter %q is required", spec.Key)
		}
		if spec.Default != nil {
			return accept(*spec.Default)
		}
		return accept(Null)
	}

	original := Stringify(raw)
	value, ok := coerce(spec.Type, raw, strings.TrimSpace(original))

	if spec.isNullText(original) {
		return accept(Null)
	}
	if !ok {
		return reject(KindType, "parameter %q must be of type %s", spec.Key, spec.Type)
	}
	if res, failed := checkRules(spec, value); failed {
		return res
	}
	return accept(value)
}

// ValidateAll runs Validate over specs in order and stops at the first rejection.
func ValidateAll(specs []Spec, inputs map[string]any) (Values, *Result) {
	out := make(Values, len(specs))
	for _, spec := range specs {
		res := Validate(spec, inputs)
		if !res.Accepted {
			return nil, &res
		}
		out[spec.Key] = res.Value
	}
	return out, nil
}

// Stringify renders a raw input as the text the type predicates see.
func Stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func coerce(t Type, raw any, text string) (Value, bool) {
	switch t {
	case TypeInt:
		if !reInt.MatchString(text) {
			return Null, false
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Null, false
		}
		return IntValue(n), true
	case TypeFloat:
		if !reFloat.MatchString(text) {
			return Null, false
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null, false
		}
		return FloatValue(f), true
	case TypeDate:
		if !reDate.MatchString(text) {
			return Null, false
		}
		return DateValue(text), true
	case TypeDateTime:
		if !reDateTime.MatchString(text) {
			return Null, false
		}
		return DateTimeValue(text), true
	case TypeBool:
		return coerceBool(text)
	case TypeChar:
		if utf8.RuneCountInString(text) != 1 {
			return Null, false
		}
		return CharValue(text), true
	case TypeString:
		if text == "" {
			return Null, false
		}
		return StringValue(text), true
	case TypeHex64:
		if !reHex64.MatchString(text) {
			return Null, false
		}
		return Hex64Value(strings.ToLower(text)), true
	case TypeUUID:
		if !reUUID4.MatchString(text) {
			return Null, false
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return Null, false
		}
		return UUIDValue(id), true
	case TypeJSON:
		return coerceJSON(raw, text)
	default:
		return Null, false
	}
}

func coerceBool(text string) (Value, bool) {
	switch text {
	case "1", "true":
		return BoolValue(true), true
	case "0", "false":
		return BoolValue(false), true
	default:
		return Null, false
	}
}

func coerceJSON(raw any, text string) (Value, bool) {
	switch raw.(type) {
	case map[string]any, []any:
		// Already decoded by the transport; normalise through a round trip.
		text = Stringify(raw)
	}
	var doc any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Null, false
	}
	if dec.More() {
		return Null, false
	}
	return JSONValue(normalizeNumbers(doc)), true
}

// normalizeNumbers converts json.Number leaves to int64 when integral, float64 otherwise.
func normalizeNumbers(doc any) any {
	switch v := doc.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	default:
		return v
	}
}

func checkRules(spec Spec, v Value) (Result, bool) {
	if n, numeric := v.Float(); numeric {
		if spec.Min != nil && n < *spec.Min {
			return reject(KindRange, "parameter %q must be at least %s", spec.Key, formatBound(*spec.Min)), true
		}
		if spec.Max != nil && n > *spec.Max {
			return reject(KindRange, "parameter %q must be at most %s", spec.Key, formatBound(*spec.Max)), true
		}
	}
	if s, textual := v.Text(); textual {
		length := utf8.RuneCountInString(s)
		if spec.MaxLength != nil && length > *spec.MaxLength {
			return reject(KindRange, "parameter %q must be at most %d characters", spec.Key, *spec.MaxLength), true
		}
		if spec.MinLength != nil && length < *spec.MinLength {
			return reject(KindRange, "parameter %q must be at least %d characters", spec.Key, *spec.MinLength), true
		}
	}
	if len(spec.Allowed) > 0 && !isAllowed(spec.Allowed, v) {
		return reject(KindRange, "parameter %q has a value that is not allowed", spec.Key), true
	}
	return Result{}, false
}

func isAllowed(allowed []Value, v Value) bool {
	for _, a := range allowed {
		if a.Equal(v) {
			return true
		}
	}
	return false
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
