package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/ir"
)

func TestLookupOp_AllowList(t *testing.T) {
	for _, m := range []string{"+", "-", "*", "/", "<", ">", "<=", ">=", "%", "=="} {
		_, ok := LookupOp(m)
		assert.True(t, ok, m)
	}
	for _, m := range []string{"**", "!=", "<<", "&", "times", "abs"} {
		_, ok := LookupOp(m)
		assert.False(t, ok, m)
	}
}

func TestOperandType(t *testing.T) {
	tests := []struct {
		op              Op
		x, y            ir.Type
		operand, result ir.Type
	}{
		{OpAdd, ir.IntType, ir.IntType, ir.IntType, ir.IntType},
		{OpMul, ir.IntType, ir.DoubleType, ir.DoubleType, ir.DoubleType},
		{OpDiv, ir.DoubleType, ir.IntType, ir.DoubleType, ir.DoubleType},
		{OpLT, ir.IntType, ir.IntType, ir.IntType, ir.BoolType},
		{OpEQ, ir.IntType, ir.DoubleType, ir.DoubleType, ir.BoolType},
		{OpEQ, ir.BoolType, ir.BoolType, ir.BoolType, ir.BoolType},
	}
	for _, tt := range tests {
		operand, result, err := OperandType(tt.op, tt.x, tt.y)
		require.NoError(t, err)
		assert.Equal(t, tt.operand, operand, "%s %s %s", tt.op, tt.x, tt.y)
		assert.Equal(t, tt.result, result, "%s %s %s", tt.op, tt.x, tt.y)
	}

	_, _, err := OperandType(OpAdd, ir.BoolType, ir.IntType)
	assert.Error(t, err)
	_, _, err = OperandType(OpAdd, ir.ArrayOf(ir.TagInt, 2), ir.IntType)
	assert.Error(t, err)
}

func TestTupleType(t *testing.T) {
	typ, err := TupleType([]ir.Type{ir.IntType, ir.IntType})
	require.NoError(t, err)
	assert.Equal(t, ir.ArrayOf(ir.TagInt, 2), typ)

	typ, err = TupleType([]ir.Type{ir.IntType, ir.DoubleType})
	require.NoError(t, err)
	assert.Equal(t, ir.ArrayOf(ir.TagDouble, 2), typ)

	_, err = TupleType([]ir.Type{ir.IntType, ir.BoolType})
	assert.Error(t, err)
	_, err = TupleType(nil)
	assert.Error(t, err)
}

func TestCheckSignature(t *testing.T) {
	assert.NoError(t, CheckSignature(ir.NewSignature([]ir.Type{ir.IntType}, ir.ArrayOf(ir.TagInt, 3))))

	err := CheckSignature(ir.NewSignature([]ir.Type{ir.ArrayOf(ir.TagInt, 3)}, ir.IntType))
	assert.True(t, errors.Is(err, ErrUnsupportedSignature))
}

func TestCheckArgs(t *testing.T) {
	sig := ir.NewSignature([]ir.Type{ir.IntType, ir.DoubleType}, ir.DoubleType)
	assert.NoError(t, CheckArgs(sig, []ir.Value{ir.Int(1), ir.Double(2)}))
	assert.ErrorIs(t, CheckArgs(sig, []ir.Value{ir.Int(1)}), ErrArgumentMismatch)
	assert.ErrorIs(t, CheckArgs(sig, []ir.Value{ir.Int(1), ir.Int(2)}), ErrArgumentMismatch)
}

func TestUnavailable(t *testing.T) {
	b := Unavailable("no code generator on this platform")
	err := b.Available()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "no code generator")

	_, err = b.NewFunction("f", ir.NewSignature(nil, ir.IntType))
	assert.ErrorIs(t, err, ErrUnavailable)
}

type namedBackend struct{ name string }

func (n namedBackend) Name() string     { return n.name }
func (n namedBackend) Available() error { return nil }
func (n namedBackend) NewFunction(string, ir.Signature) (Builder, error) {
	return nil, errors.New("not implemented")
}

func TestRegistry(t *testing.T) {
	Register(namedBackend{name: "test-registry"})

	b, err := Lookup("test-registry")
	require.NoError(t, err)
	assert.Equal(t, "test-registry", b.Name())
	assert.Contains(t, Names(), "test-registry")

	_, err = Lookup("does-not-exist")
	assert.Error(t, err)

	assert.Panics(t, func() { Register(namedBackend{name: "test-registry"}) })
}
