package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Tag is the abstract numeric category of a runtime value, assigned by
// inspecting the value's class at witness time.
type Tag uint8

const (
	TagInvalid Tag = iota
	TagInt
	TagDouble
	TagBool
	TagArray
)

var tagNames = map[Tag]string{
	TagInvalid: "INVALID",
	TagInt:     "INT",
	TagDouble:  "DOUBLE",
	TagBool:    "BOOL",
	TagArray:   "ARRAY",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// IsNumeric reports whether t is INT or DOUBLE.
func (t Tag) IsNumeric() bool {
	return t == TagInt || t == TagDouble
}

// ParseTag parses a tag name case-insensitively.
func ParseTag(s string) (Tag, error) {
	for t, name := range tagNames {
		if t != TagInvalid && strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return TagInvalid, fmt.Errorf("unknown type tag %q", s)
}

// Type is a tag plus, for arrays, the element tag and fixed length.
type Type struct {
	Tag  Tag
	Elem Tag // Element tag (arrays only)
	Len  int // Element count (arrays only)
}

var (
	IntType    = Type{Tag: TagInt}
	DoubleType = Type{Tag: TagDouble}
	BoolType   = Type{Tag: TagBool}
)

// ArrayOf returns the type of a literal-sized array.
func ArrayOf(elem Tag, n int) Type {
	return Type{Tag: TagArray, Elem: elem, Len: n}
}

// Scalar returns the scalar type for tag t.
func Scalar(t Tag) Type {
	return Type{Tag: t}
}

func (t Type) String() string {
	if t.Tag == TagArray {
		return fmt.Sprintf("ARRAY[%d]%s", t.Len, t.Elem)
	}
	return t.Tag.String()
}

// IsScalar reports whether t is a non-array type.
func (t Type) IsScalar() bool {
	return t.Tag != TagArray && t.Tag != TagInvalid
}

// ElemType returns the element type of an array type.
func (t Type) ElemType() Type {
	return Type{Tag: t.Elem}
}

// UnsupportedTypeError is returned when a runtime value has no Type Tag.
type UnsupportedTypeError struct {
	Value  Value
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported value %s: %s", describe(e.Value), e.Reason)
}

func describe(v Value) string {
	if v == nil {
		return "<absent>"
	}
	return v.String()
}

// IsUnsupportedType returns true if err is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	var ute *UnsupportedTypeError
	return errors.As(err, &ute)
}

// TypeOf inspects a runtime value and returns its Type.
// Nil, empty, nested and heterogeneous arrays have no type.
func TypeOf(v Value) (Type, error) {
	switch val := v.(type) {
	case Int:
		return IntType, nil
	case Double:
		return DoubleType, nil
	case Bool:
		return BoolType, nil
	case Array:
		if len(val) == 0 {
			return Type{}, &UnsupportedTypeError{Value: v, Reason: "empty array has no element type"}
		}
		var elem Tag
		for i, e := range val {
			et, err := TypeOf(e)
			if err != nil {
				return Type{}, err
			}
			if !et.IsScalar() {
				return Type{}, &UnsupportedTypeError{Value: v, Reason: "nested arrays are not supported"}
			}
			if i == 0 {
				elem = et.Tag
			} else if et.Tag != elem {
				return Type{}, &UnsupportedTypeError{Value: v, Reason: "heterogeneous array"}
			}
		}
		return ArrayOf(elem, len(val)), nil
	default:
		return Type{}, &UnsupportedTypeError{Value: v, Reason: "no type tag"}
	}
}

// Signature is an ordered sequence of argument types plus one result type.
// A Signature is immutable once captured.
type Signature struct {
	params []Type
	result Type
}

// NewSignature creates a Signature. The params slice is copied.
func NewSignature(params []Type, result Type) Signature {
	p := make([]Type, len(params))
	copy(p, params)
	return Signature{params: p, result: result}
}

// SignatureOf builds a Signature from observed argument and result values.
func SignatureOf(args []Value, result Value) (Signature, error) {
	params := make([]Type, len(args))
	for i, a := range args {
		t, err := TypeOf(a)
		if err != nil {
			return Signature{}, fmt.Errorf("argument %d: %w", i, err)
		}
		params[i] = t
	}
	rt, err := TypeOf(result)
	if err != nil {
		return Signature{}, fmt.Errorf("result: %w", err)
	}
	return Signature{params: params, result: rt}, nil
}

// Params returns a copy of the parameter types.
func (s Signature) Params() []Type {
	p := make([]Type, len(s.params))
	copy(p, s.params)
	return p
}

// Param returns the type of parameter i.
func (s Signature) Param(i int) Type {
	return s.params[i]
}

// Arity returns the number of parameters.
func (s Signature) Arity() int {
	return len(s.params)
}

// Result returns the result type.
func (s Signature) Result() Type {
	return s.result
}

// Matches reports whether args have exactly the parameter types of s.
func (s Signature) Matches(args []Value) bool {
	if len(args) != len(s.params) {
		return false
	}
	for i, a := range args {
		t, err := TypeOf(a)
		if err != nil || t != s.params[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two signatures are identical.
func (s Signature) Equal(o Signature) bool {
	if s.result != o.result || len(s.params) != len(o.params) {
		return false
	}
	for i := range s.params {
		if s.params[i] != o.params[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), s.result)
}

// ParseSignature parses the String form of a Signature.
func ParseSignature(s string) (Signature, error) {
	open := strings.Index(s, "(")
	arrow := strings.Index(s, ") -> ")
	if open != 0 || arrow < 0 {
		return Signature{}, fmt.Errorf("malformed signature %q", s)
	}
	var params []Type
	inner := strings.TrimSpace(s[1:arrow])
	if inner != "" {
		for _, p := range strings.Split(inner, ",") {
			t, err := ParseType(strings.TrimSpace(p))
			if err != nil {
				return Signature{}, err
			}
			params = append(params, t)
		}
	}
	rt, err := ParseType(strings.TrimSpace(s[arrow+len(") -> "):]))
	if err != nil {
		return Signature{}, err
	}
	return NewSignature(params, rt), nil
}

// ParseType parses the String form of a Type.
func ParseType(s string) (Type, error) {
	if strings.HasPrefix(s, "ARRAY[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return Type{}, fmt.Errorf("malformed array type %q", s)
		}
		var n int
		if _, err := fmt.Sscanf(s[len("ARRAY["):end], "%d", &n); err != nil {
			return Type{}, fmt.Errorf("malformed array length in %q: %w", s, err)
		}
		elem, err := ParseTag(s[end+1:])
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(elem, n), nil
	}
	t, err := ParseTag(s)
	if err != nil {
		return Type{}, err
	}
	return Scalar(t), nil
}
