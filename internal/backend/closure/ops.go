package closure

import (
	"math"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

func intOp(op backend.Op) func(a, b int64) (uint64, error) {
	switch op {
	case backend.OpAdd:
		return func(a, b int64) (uint64, error) { return uint64(a + b), nil }
	case backend.OpSub:
		return func(a, b int64) (uint64, error) { return uint64(a - b), nil }
	case backend.OpMul:
		return func(a, b int64) (uint64, error) { return uint64(a * b), nil }
	case backend.OpDiv:
		return func(a, b int64) (uint64, error) {
			if b == 0 {
				return 0, backend.ErrDivisionByZero
			}
			return uint64(ir.FloorDiv(a, b)), nil
		}
	case backend.OpRem:
		return func(a, b int64) (uint64, error) {
			if b == 0 {
				return 0, backend.ErrDivisionByZero
			}
			return uint64(ir.FloorMod(a, b)), nil
		}
	case backend.OpLT:
		return func(a, b int64) (uint64, error) { return boolBits(a < b), nil }
	case backend.OpGT:
		return func(a, b int64) (uint64, error) { return boolBits(a > b), nil }
	case backend.OpLE:
		return func(a, b int64) (uint64, error) { return boolBits(a <= b), nil }
	case backend.OpGE:
		return func(a, b int64) (uint64, error) { return boolBits(a >= b), nil }
	case backend.OpEQ:
		return func(a, b int64) (uint64, error) { return boolBits(a == b), nil }
	}
	panic("closure: unknown op " + op.String())
}

func floatOp(op backend.Op) func(a, b float64) uint64 {
	switch op {
	case backend.OpAdd:
		return func(a, b float64) uint64 { return math.Float64bits(a + b) }
	case backend.OpSub:
		return func(a, b float64) uint64 { return math.Float64bits(a - b) }
	case backend.OpMul:
		return func(a, b float64) uint64 { return math.Float64bits(a * b) }
	case backend.OpDiv:
		return func(a, b float64) uint64 { return math.Float64bits(a / b) }
	case backend.OpRem:
		return func(a, b float64) uint64 { return math.Float64bits(ir.FloatMod(a, b)) }
	case backend.OpLT:
		return func(a, b float64) uint64 { return boolBits(a < b) }
	case backend.OpGT:
		return func(a, b float64) uint64 { return boolBits(a > b) }
	case backend.OpLE:
		return func(a, b float64) uint64 { return boolBits(a <= b) }
	case backend.OpGE:
		return func(a, b float64) uint64 { return boolBits(a >= b) }
	case backend.OpEQ:
		return func(a, b float64) uint64 { return boolBits(a == b) }
	}
	panic("closure: unknown op " + op.String())
}
