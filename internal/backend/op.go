package backend

import (
	"fmt"

	"github.com/syntheticore/skip/internal/ir"
)

// Op is a native binary instruction.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
	OpRem
	OpLT
	OpGT
	OpLE
	OpGE
	OpEQ
)

var opMethods = map[string]Op{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"%":  OpRem,
	"<":  OpLT,
	">":  OpGT,
	"<=": OpLE,
	">=": OpGE,
	"==": OpEQ,
}

var opNames = map[Op]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpRem: "rem",
	OpLT:  "lt",
	OpGT:  "gt",
	OpLE:  "le",
	OpGE:  "ge",
	OpEQ:  "eq",
}

// LookupOp maps a host method name to a native instruction. Only the
// allow-listed operators have one.
func LookupOp(method string) (Op, bool) {
	op, ok := opMethods[method]
	return op, ok
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// IsComparison reports whether o yields a BOOL.
func (o Op) IsComparison() bool {
	return o >= OpLT
}

// OperandType returns the type both operands are converted to before o is
// applied, and the type of the result.
//
// INT with INT stays INT, any DOUBLE operand promotes both to DOUBLE and
// comparisons yield BOOL. BOOL operands are only accepted by OpEQ, against
// another BOOL.
func OperandType(o Op, x, y ir.Type) (operand, result ir.Type, err error) {
	if !x.IsScalar() || !y.IsScalar() {
		return ir.Type{}, ir.Type{}, fmt.Errorf("%s: operands must be scalar, got %s and %s", o, x, y)
	}
	switch {
	case x.Tag == ir.TagBool || y.Tag == ir.TagBool:
		if o != OpEQ || x.Tag != y.Tag {
			return ir.Type{}, ir.Type{}, fmt.Errorf("%s: unsupported operand types %s and %s", o, x, y)
		}
		operand = ir.BoolType
	case x.Tag == ir.TagDouble || y.Tag == ir.TagDouble:
		operand = ir.DoubleType
	default:
		operand = ir.IntType
	}
	if o.IsComparison() {
		return operand, ir.BoolType, nil
	}
	return operand, operand, nil
}

// TupleType returns the array type of a tuple built from elems. Numeric
// elements promote to DOUBLE if any of them is DOUBLE.
func TupleType(elems []ir.Type) (ir.Type, error) {
	if len(elems) == 0 {
		return ir.Type{}, fmt.Errorf("tuple: no elements")
	}
	tag := elems[0].Tag
	for _, e := range elems {
		if !e.IsScalar() {
			return ir.Type{}, fmt.Errorf("tuple: element type %s is not scalar", e)
		}
		switch {
		case e.Tag == tag:
		case e.Tag.IsNumeric() && tag.IsNumeric():
			tag = ir.TagDouble
		default:
			return ir.Type{}, fmt.Errorf("tuple: mixed element types %s and %s", tag, e.Tag)
		}
	}
	return ir.ArrayOf(tag, len(elems)), nil
}

// Assignable reports whether a value of type src can be stored into dst.
func Assignable(dst, src ir.Type) bool {
	switch {
	case dst == src:
		return true
	case dst.IsScalar() && src.IsScalar():
		return dst.Tag.IsNumeric() && src.Tag.IsNumeric()
	case dst.Tag == ir.TagArray && src.Tag == ir.TagArray:
		return dst.Len == src.Len && Assignable(dst.ElemType(), src.ElemType())
	}
	return false
}
