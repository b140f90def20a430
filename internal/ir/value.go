package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is a sealed interface representing runtime values of the host dialect.
// Only Nil, Int, Double, Bool and Array implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
	String() string
}

// Nil is the absence of a value (an untaken conditional, an empty block).
type Nil struct{}

func (Nil) irValue() {}

func (Nil) String() string { return "nil" }

// Int is a 64-bit integer value.
type Int int64

func (Int) irValue() {}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Double is a 64-bit floating point value.
type Double float64

func (Double) irValue() {}

// String always renders a fractional part or exponent so that doubles never
// read back as integers.
func (d Double) String() string {
	f := float64(d)
	switch {
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Array is a literal-sized sequence of values.
type Array []Value

func (Array) irValue() {}

func (a Array) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			buf.WriteString(", ")
		}
		if v == nil {
			buf.WriteString("nil")
			continue
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// Ints creates an Array of Int values.
// Example: Ints(1, 2, 3)
func Ints(ns ...int64) Array {
	arr := make(Array, len(ns))
	for i, n := range ns {
		arr[i] = Int(n)
	}
	return arr
}

// Equal reports whether a and b are exactly equal.
// No numeric widening is applied: Int(1) != Double(1).
// NaN compares equal to NaN so that a compiled result can match its witness.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Nil:
		_, ok := b.(Nil)
		return ok
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Double:
		y, ok := b.(Double)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return math.Float64bits(float64(x)) == math.Float64bits(float64(y)) || x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Truthy implements the host dialect's truthiness rule: only false and nil
// are falsy. Every number, including zero, is true.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil, Nil:
		return false
	case Bool:
		return bool(x)
	default:
		return true
	}
}

// FromAny converts a decoded Go value (from YAML, JSON or CUE) to a Value.
// Integral Go types become Int, floating types become Double.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Nil{}, nil
	case Value:
		return val, nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float64:
		return Double(val), nil
	case float32:
		return Double(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return parseNumber(string(val))
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// ParseValue parses the textual form of a value: integers, doubles
// (anything with a fractional part or exponent), true/false, nil and
// arrays in flow style like "[1, [2.5, 3], nil]".
func ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", s, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("parse value %q: not a single value", s)
	}
	return fromYAML(doc.Content[0])
}

func fromYAML(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		arr := make(Array, len(n.Content))
		for i, c := range n.Content {
			v, err := fromYAML(c)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case yaml.ScalarNode:
		if n.Style == 0 && n.Value == "nil" {
			return Nil{}, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		if _, isString := v.(string); isString {
			return nil, fmt.Errorf("invalid value %q", n.Value)
		}
		return FromAny(v)
	}
	return nil, fmt.Errorf("invalid value at line %d: maps are not values", n.Line)
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eEnN") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Double(f), nil
}

// MarshalValue marshals a Value to JSON bytes.
// Doubles keep their fractional marker so UnmarshalValue restores the tag.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Nil:
		return []byte("null"), nil
	case Int:
		return []byte(val.String()), nil
	case Double:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return json.Marshal(val.String())
		}
		return []byte(val.String()), nil
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// MarshalValues marshals a list of values as a JSON array.
func MarshalValues(vs []Value) ([]byte, error) {
	return MarshalValue(Array(vs))
}

// UnmarshalValue decodes JSON produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		return Nil{}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case '"':
		// Non-finite doubles are stored as strings.
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid non-finite double %q", s)
		}
		return Double(f), nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		arr := make(Array, len(raw))
		for i, r := range raw {
			v, err := UnmarshalValue(r)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	default:
		return parseNumber(string(data))
	}
}

// UnmarshalValues decodes a JSON array produced by MarshalValues.
func UnmarshalValues(data []byte) ([]Value, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("expected JSON array, got %s", v)
	}
	return []Value(arr), nil
}
