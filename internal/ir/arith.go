package ir

import "math"

// FloorDiv divides rounding toward negative infinity. b must be non-zero.
// Overflow wraps like the rest of INT arithmetic.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// FloorMod returns the remainder of FloorDiv; its sign follows b.
func FloorMod(a, b int64) int64 {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// FloatMod is the floored modulo for doubles. A zero divisor yields NaN.
func FloatMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && !math.IsNaN(r) && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

// Zero returns the zero value of t.
func Zero(t Type) Value {
	switch t.Tag {
	case TagInt:
		return Int(0)
	case TagDouble:
		return Double(0)
	case TagBool:
		return Bool(false)
	case TagArray:
		arr := make(Array, t.Len)
		for i := range arr {
			arr[i] = Zero(t.ElemType())
		}
		return arr
	}
	return Nil{}
}
