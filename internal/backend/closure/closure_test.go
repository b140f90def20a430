package closure

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

func sig(result ir.Type, params ...ir.Type) ir.Signature {
	return ir.NewSignature(params, result)
}

func mustBuilder(t *testing.T, name string, s ir.Signature) backend.Builder {
	t.Helper()
	b, err := New().NewFunction(name, s)
	require.NoError(t, err)
	return b
}

func mustValue(t *testing.T) func(backend.Value, error) backend.Value {
	return func(v backend.Value, err error) backend.Value {
		t.Helper()
		require.NoError(t, err)
		return v
	}
}

// ============================================================================
// Straight-line code
// ============================================================================

func TestBinary_Add(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "add", sig(ir.IntType, ir.IntType, ir.IntType))
	sum := must(b.Binary(backend.OpAdd, must(b.Param(0)), must(b.Param(1))))
	require.NoError(t, b.Return(sum))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(2), ir.Int(40))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(42), got)

	want := "func add(INT, INT) -> INT\n" +
		"  r0 = param 0 INT\n" +
		"  r1 = param 1 INT\n" +
		"  r3 = add.INT r0, r1\n" +
		"  ret r3\n"
	assert.Equal(t, want, art.String())
}

func TestBinary_Promotion(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "scale", sig(ir.DoubleType, ir.IntType))
	x := must(b.Param(0))
	half := must(b.Constant(ir.Double(0.5)))
	r := must(b.Binary(backend.OpMul, x, half))
	assert.Equal(t, ir.DoubleType, r.Type())
	require.NoError(t, b.Return(r))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(3))
	require.NoError(t, err)
	assert.Equal(t, ir.Double(1.5), got)
}

func TestBinary_FlooredIntegerDivision(t *testing.T) {
	for _, tt := range []struct {
		op   backend.Op
		a, b int64
		want int64
	}{
		{backend.OpDiv, -7, 2, -4},
		{backend.OpRem, -7, 2, 1},
		{backend.OpRem, 7, -2, -1},
	} {
		must := mustValue(t)
		b := mustBuilder(t, "f", sig(ir.IntType, ir.IntType, ir.IntType))
		r := must(b.Binary(tt.op, must(b.Param(0)), must(b.Param(1))))
		require.NoError(t, b.Return(r))
		art, err := b.Finish()
		require.NoError(t, err)

		got, err := art.Apply(ir.Int(tt.a), ir.Int(tt.b))
		require.NoError(t, err)
		assert.Equal(t, ir.Int(tt.want), got, "%d %s %d", tt.a, tt.op, tt.b)
	}
}

func TestBinary_DivisionByZero(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "div", sig(ir.IntType, ir.IntType))
	r := must(b.Binary(backend.OpDiv, must(b.Param(0)), must(b.Constant(ir.Int(0)))))
	require.NoError(t, b.Return(r))
	art, err := b.Finish()
	require.NoError(t, err)

	_, err = art.Apply(ir.Int(1))
	assert.ErrorIs(t, err, backend.ErrDivisionByZero)
}

func TestBinary_DoubleDivisionByZero(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "div", sig(ir.DoubleType, ir.DoubleType))
	r := must(b.Binary(backend.OpDiv, must(b.Param(0)), must(b.Constant(ir.Int(0)))))
	require.NoError(t, b.Return(r))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Double(1))
	require.NoError(t, err)
	assert.Equal(t, ir.Double(math.Inf(1)), got)
}

func TestBinary_RejectsBoolArithmetic(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "f", sig(ir.IntType, ir.IntType))
	c := must(b.Binary(backend.OpLT, must(b.Param(0)), must(b.Constant(ir.Int(1)))))
	_, err := b.Binary(backend.OpAdd, c, must(b.Param(0)))
	assert.Error(t, err)
}

// ============================================================================
// Control flow
// ============================================================================

// counter builds: i = p0; while i < p1 { i = i + 1 }; return i
func counter(t *testing.T) backend.Artifact {
	must := mustValue(t)
	b := mustBuilder(t, "counter", sig(ir.IntType, ir.IntType, ir.IntType))
	i := must(b.Local(ir.IntType))
	require.NoError(t, b.Store(i, must(b.Param(0))))
	one := must(b.Constant(ir.Int(1)))
	err := b.While(
		func() (backend.Value, error) { return b.Binary(backend.OpLT, i, must(b.Param(1))) },
		func() error { return b.Store(i, must(b.Binary(backend.OpAdd, i, one))) },
	)
	require.NoError(t, err)
	require.NoError(t, b.Return(i))
	art, err := b.Finish()
	require.NoError(t, err)
	return art
}

func TestWhile_PreTest(t *testing.T) {
	art := counter(t)

	got, err := art.Apply(ir.Int(2), ir.Int(9999))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(9999), got)

	got, err = art.Apply(ir.Int(10), ir.Int(5))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(10), got, "false first condition runs the body zero times")
}

func TestIf_NumberIsTruthy(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "f", sig(ir.IntType, ir.IntType))
	r := must(b.Local(ir.IntType))
	require.NoError(t, b.If(must(b.Param(0)), func() error {
		return b.Store(r, must(b.Constant(ir.Int(7))))
	}))
	require.NoError(t, b.Return(r))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(0))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), got, "0 is truthy")
}

func TestReturn_EarlyFromLoop(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "first_over", sig(ir.IntType, ir.IntType))
	i := must(b.Local(ir.IntType))
	one := must(b.Constant(ir.Int(1)))
	err := b.While(
		func() (backend.Value, error) { return b.Constant(ir.Bool(true)) },
		func() error {
			if err := b.Store(i, must(b.Binary(backend.OpAdd, i, one))); err != nil {
				return err
			}
			return b.If(must(b.Binary(backend.OpGT, i, must(b.Param(0)))), func() error {
				return b.Return(i)
			})
		},
	)
	require.NoError(t, err)
	require.NoError(t, b.Return(must(b.Constant(ir.Int(-1)))))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(4))
	require.NoError(t, err)
	assert.Equal(t, ir.Int(5), got)
}

func TestTuple(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "triple", sig(ir.ArrayOf(ir.TagInt, 3), ir.IntType))
	x := must(b.Param(0))
	elems := make([]backend.Value, 3)
	for i := range elems {
		elems[i] = must(b.Binary(backend.OpMul, must(b.Constant(ir.Int(int64(i+1)))), x))
	}
	tup := must(b.Tuple(elems))
	require.NoError(t, b.Return(tup))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(5))
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Ints(5, 10, 15), got), "got %s", got)
}

func TestStore_ConvertsToDouble(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "f", sig(ir.DoubleType, ir.IntType))
	d := must(b.Local(ir.DoubleType))
	require.NoError(t, b.Store(d, must(b.Param(0))))
	require.NoError(t, b.Return(d))
	art, err := b.Finish()
	require.NoError(t, err)

	got, err := art.Apply(ir.Int(3))
	require.NoError(t, err)
	assert.Equal(t, ir.Double(3), got)
}

func TestStore_TruncatesToInt(t *testing.T) {
	must := mustValue(t)
	b := mustBuilder(t, "f", sig(ir.IntType, ir.DoubleType))
	n := must(b.Local(ir.IntType))
	require.NoError(t, b.Store(n, must(b.Param(0))))
	require.NoError(t, b.Return(n))
	art, err := b.Finish()
	require.NoError(t, err)

	for in, want := range map[float64]int64{2.9: 2, -2.9: -2, 0: 0, -9.2e18: -9.2e18} {
		got, err := art.Apply(ir.Double(in))
		require.NoError(t, err)
		assert.Equal(t, ir.Int(want), got, "in %v", in)
	}
	for _, in := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e19, -1e19, 9223372036854775808} {
		_, err := art.Apply(ir.Double(in))
		assert.ErrorIs(t, err, backend.ErrIntegerRange, "in %v", in)
	}
}

// ============================================================================
// Artifact
// ============================================================================

func TestApply_ChecksArguments(t *testing.T) {
	art := counter(t)
	_, err := art.Apply(ir.Int(1))
	assert.ErrorIs(t, err, backend.ErrArgumentMismatch)
	_, err = art.Apply(ir.Double(1), ir.Int(2))
	assert.ErrorIs(t, err, backend.ErrArgumentMismatch)
}

func TestApply_Concurrent(t *testing.T) {
	art := counter(t)
	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				got, err := art.Apply(ir.Int(0), ir.Int(n))
				assert.NoError(t, err)
				assert.Equal(t, ir.Int(n), got)
			}
		}(int64(n))
	}
	wg.Wait()
}

func TestNewFunction_RejectsArrayParams(t *testing.T) {
	_, err := New().NewFunction("f", sig(ir.IntType, ir.ArrayOf(ir.TagInt, 3)))
	assert.ErrorIs(t, err, backend.ErrUnsupportedSignature)
}

func TestFinish_Once(t *testing.T) {
	b := mustBuilder(t, "f", sig(ir.IntType))
	_, err := b.Finish()
	require.NoError(t, err)
	_, err = b.Finish()
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	b, err := backend.Lookup(Name)
	require.NoError(t, err)
	assert.NoError(t, b.Available())
}
