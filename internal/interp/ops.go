package interp

import (
	"math"

	"github.com/syntheticore/skip/internal/ir"
)

// binary applies a dialect operator. Mixed INT and DOUBLE operands promote
// to DOUBLE; integer overflow wraps.
func binary(method string, x, y ir.Value) (ir.Value, error) {
	switch method {
	case "==":
		return ir.Bool(equal(x, y)), nil
	case "!=":
		return ir.Bool(!equal(x, y)), nil
	case "<<", ">>", "&", "|", "^":
		return bitwise(method, x, y)
	case "+", "-", "*", "/", "%", "**", "<", ">", "<=", ">=":
	default:
		return nil, newError(ErrCodeUndefinedOperator, "undefined method '%s' for %s", method, x)
	}

	xi, xIsInt := x.(ir.Int)
	yi, yIsInt := y.(ir.Int)
	if xIsInt && yIsInt {
		return intBinary(method, int64(xi), int64(yi))
	}
	xf, ok := toFloat(x)
	if !ok {
		return nil, newError(ErrCodeTypeError, "undefined method '%s' for %s", method, x)
	}
	yf, ok := toFloat(y)
	if !ok {
		return nil, newError(ErrCodeTypeError, "%s can't be coerced into %s", y, x)
	}
	return floatBinary(method, xf, yf), nil
}

func toFloat(v ir.Value) (float64, bool) {
	switch x := v.(type) {
	case ir.Int:
		return float64(x), true
	case ir.Double:
		return float64(x), true
	}
	return 0, false
}

func intBinary(method string, a, b int64) (ir.Value, error) {
	switch method {
	case "+":
		return ir.Int(a + b), nil
	case "-":
		return ir.Int(a - b), nil
	case "*":
		return ir.Int(a * b), nil
	case "/":
		if b == 0 {
			return nil, newError(ErrCodeDivisionByZero, "divided by 0")
		}
		return ir.Int(ir.FloorDiv(a, b)), nil
	case "%":
		if b == 0 {
			return nil, newError(ErrCodeDivisionByZero, "divided by 0")
		}
		return ir.Int(ir.FloorMod(a, b)), nil
	case "**":
		if b < 0 {
			return ir.Double(math.Pow(float64(a), float64(b))), nil
		}
		return ir.Int(ipow(a, b)), nil
	case "<":
		return ir.Bool(a < b), nil
	case ">":
		return ir.Bool(a > b), nil
	case "<=":
		return ir.Bool(a <= b), nil
	case ">=":
		return ir.Bool(a >= b), nil
	}
	return nil, newError(ErrCodeUndefinedOperator, "undefined method '%s'", method)
}

func ipow(a, b int64) int64 {
	r := int64(1)
	for b > 0 {
		if b&1 == 1 {
			r *= a
		}
		a *= a
		b >>= 1
	}
	return r
}

func floatBinary(method string, a, b float64) ir.Value {
	switch method {
	case "+":
		return ir.Double(a + b)
	case "-":
		return ir.Double(a - b)
	case "*":
		return ir.Double(a * b)
	case "/":
		return ir.Double(a / b)
	case "%":
		return ir.Double(ir.FloatMod(a, b))
	case "**":
		return ir.Double(math.Pow(a, b))
	case "<":
		return ir.Bool(a < b)
	case ">":
		return ir.Bool(a > b)
	case "<=":
		return ir.Bool(a <= b)
	}
	return ir.Bool(a >= b)
}

func bitwise(method string, x, y ir.Value) (ir.Value, error) {
	a, ok := x.(ir.Int)
	if !ok {
		return nil, newError(ErrCodeUndefinedOperator, "undefined method '%s' for %s", method, x)
	}
	b, ok := y.(ir.Int)
	if !ok {
		return nil, newError(ErrCodeTypeError, "%s can't be coerced into Integer", y)
	}
	switch method {
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "<<":
		return shift(a, b), nil
	}
	return shift(a, -b), nil
}

// shift shifts left for positive n and arithmetically right for negative n.
func shift(a, n ir.Int) ir.Int {
	switch {
	case n >= 64:
		return 0
	case n >= 0:
		return a << uint(n)
	case n <= -64:
		if a < 0 {
			return -1
		}
		return 0
	}
	return a >> uint(-n)
}

// equal is the dialect's == : numbers compare by value across INT and
// DOUBLE, everything else structurally.
func equal(x, y ir.Value) bool {
	xf, xNum := toFloat(x)
	yf, yNum := toFloat(y)
	if xNum && yNum {
		xi, xIsInt := x.(ir.Int)
		yi, yIsInt := y.(ir.Int)
		if xIsInt && yIsInt {
			return xi == yi
		}
		return xf == yf
	}
	xa, xArr := x.(ir.Array)
	ya, yArr := y.(ir.Array)
	if xArr && yArr {
		if len(xa) != len(ya) {
			return false
		}
		for i := range xa {
			if !equal(xa[i], ya[i]) {
				return false
			}
		}
		return true
	}
	if x == nil || y == nil {
		return x == y
	}
	return ir.Equal(x, y)
}
