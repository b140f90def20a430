package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/ir"
)

func TestFixtures_Interpret(t *testing.T) {
	tests := []struct {
		name string
		tree *ast.Node
		args []ir.Value
		want ir.Value
	}{
		{"stride", Stride(), Ints(2, 5000), ir.Int(2499)},
		{"scale", Scale(), Ints(5), ir.Ints(5, 10, 15)},
		{"square", Square(), Ints(3), ir.Int(9)},
		{"add", Add(), Ints(2, 3), ir.Int(5)},
		{"sum", Sum(), []ir.Value{ir.Ints(1, 2, 3)}, ir.Int(6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Function(tt.tree).Call(tt.args...)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s", got)
		})
	}
}

func TestFixtures_Subset(t *testing.T) {
	assert.Empty(t, compiler.Check(Stride()))
	assert.Empty(t, compiler.Check(Scale()))
	assert.Empty(t, compiler.Check(Sum()))
	assert.NotEmpty(t, compiler.Check(Square()))
}

func TestFunction_PanicsOnBadTree(t *testing.T) {
	assert.Panics(t, func() { Function(ast.Int(1)) })
}
