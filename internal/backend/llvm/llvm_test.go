package llvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

func build(t *testing.T, name string, sig ir.Signature, body func(b backend.Builder) error) string {
	t.Helper()
	b, err := New().NewFunction(name, sig)
	require.NoError(t, err)
	require.NoError(t, body(b))
	art, err := b.Finish()
	require.NoError(t, err)
	return art.String()
}

func TestAvailable_EmitOnly(t *testing.T) {
	assert.ErrorIs(t, New().Available(), backend.ErrUnavailable)
}

func TestEmit_Add(t *testing.T) {
	sig := ir.NewSignature([]ir.Type{ir.IntType, ir.DoubleType}, ir.DoubleType)
	text := build(t, "mix", sig, func(b backend.Builder) error {
		x, _ := b.Param(0)
		y, _ := b.Param(1)
		r, err := b.Binary(backend.OpAdd, x, y)
		if err != nil {
			return err
		}
		return b.Return(r)
	})
	assert.Contains(t, text, "define double @mix(i64 %p0, double %p1)")
	assert.Contains(t, text, "sitofp i64")
	assert.Contains(t, text, "fadd double")
	assert.Contains(t, text, "ret double")
}

func TestEmit_FlooredDivisionTraps(t *testing.T) {
	sig := ir.NewSignature([]ir.Type{ir.IntType, ir.IntType}, ir.IntType)
	text := build(t, "div", sig, func(b backend.Builder) error {
		x, _ := b.Param(0)
		y, _ := b.Param(1)
		r, err := b.Binary(backend.OpDiv, x, y)
		if err != nil {
			return err
		}
		return b.Return(r)
	})
	assert.Contains(t, text, "declare void @llvm.trap()")
	assert.Contains(t, text, "sdiv i64")
	assert.Contains(t, text, "srem i64")
	assert.Contains(t, text, "unreachable")
}

func TestEmit_WhileLoop(t *testing.T) {
	sig := ir.NewSignature([]ir.Type{ir.IntType}, ir.IntType)
	text := build(t, "count", sig, func(b backend.Builder) error {
		n, _ := b.Param(0)
		i, err := b.Local(ir.IntType)
		if err != nil {
			return err
		}
		one, _ := b.Constant(ir.Int(1))
		err = b.While(
			func() (backend.Value, error) { return b.Binary(backend.OpLT, i, n) },
			func() error {
				next, err := b.Binary(backend.OpAdd, i, one)
				if err != nil {
					return err
				}
				return b.Store(i, next)
			},
		)
		if err != nil {
			return err
		}
		return b.Return(i)
	})
	assert.Contains(t, text, "while.cond.1:")
	assert.Contains(t, text, "while.body.2:")
	assert.Contains(t, text, "while.end.3:")
	assert.Contains(t, text, "icmp slt i64")
	assert.Contains(t, text, "alloca i64")
}

func TestEmit_Tuple(t *testing.T) {
	sig := ir.NewSignature([]ir.Type{ir.IntType}, ir.ArrayOf(ir.TagInt, 2))
	text := build(t, "pair", sig, func(b backend.Builder) error {
		x, _ := b.Param(0)
		c, _ := b.Constant(ir.Int(2))
		y, err := b.Binary(backend.OpMul, x, c)
		if err != nil {
			return err
		}
		tup, err := b.Tuple([]backend.Value{x, y})
		if err != nil {
			return err
		}
		return b.Return(tup)
	})
	assert.Contains(t, text, "define [2 x i64] @pair(i64 %p0)")
	assert.Contains(t, text, "insertvalue [2 x i64]")
}

func TestArtifact_NotExecutable(t *testing.T) {
	b, err := New().NewFunction("f", ir.NewSignature(nil, ir.IntType))
	require.NoError(t, err)
	art, err := b.Finish()
	require.NoError(t, err)
	_, err = art.Apply()
	assert.ErrorIs(t, err, backend.ErrNotExecutable)
	assert.Contains(t, art.String(), "ret i64 0")
}
