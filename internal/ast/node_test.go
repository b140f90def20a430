package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntheticore/skip/internal/ir"
)

func sumTree() *Node {
	return Func("sum", []string{"n"}, Block(
		Asgn("r", Int(0)),
		Times(Var("n"), "k", Asgn("r", Call(Var("r"), "+", Var("k")))),
		Var("r"),
	))
}

// ============================================================================
// Construction and cursor
// ============================================================================

func TestFunc_Params(t *testing.T) {
	fn := Func("f", []string{"a", "b"}, Block())
	assert.Equal(t, []string{"a", "b"}, fn.Params())
	assert.Equal(t, 2, fn.Arity())
	assert.True(t, fn.ParamList().Child(0).IsBareParam())
}

func TestCursor_ReadOnly(t *testing.T) {
	blk := Block(Int(1), Int(2), Int(3))
	c := blk.Cursor()
	assert.Equal(t, 3, c.Remaining())
	assert.Equal(t, "(lit 1)", c.Peek().String())
	var seen []string
	for c.More() {
		seen = append(seen, c.Next().String())
	}
	assert.Equal(t, []string{"(lit 1)", "(lit 2)", "(lit 3)"}, seen)
	assert.Nil(t, c.Next())

	// A second cursor starts fresh; the first did not consume the node.
	assert.Equal(t, 3, blk.Cursor().Remaining())
}

func TestBlock_CopiesChildren(t *testing.T) {
	stmts := []*Node{Int(1), Int(2)}
	blk := Block(stmts...)
	stmts[0] = Int(99)
	assert.Equal(t, "(block (lit 1) (lit 2))", blk.String())
}

func TestLiteralArray(t *testing.T) {
	arr, ok := IntArray(1, 2, 3).LiteralArray()
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.Ints(1, 2, 3), arr))

	_, ok = Array(Int(1), Var("x")).LiteralArray()
	assert.False(t, ok)
	_, ok = Var("x").LiteralArray()
	assert.False(t, ok)
}

func TestWalk_SkipsChildren(t *testing.T) {
	var kinds []Kind
	Walk(sumTree(), func(n *Node) bool {
		kinds = append(kinds, n.Kind())
		return n.Kind() != KindIter
	})
	assert.Contains(t, kinds, KindIter)
	assert.NotContains(t, kinds, KindCall, "iter body must be skipped")
}

// ============================================================================
// S-expressions
// ============================================================================

func TestDecode_RoundTrip(t *testing.T) {
	trees := []*Node{
		sumTree(),
		Func("m", []string{"x"}, Block(Map(IntArray(1, 2, 3), "e", Call(Var("e"), "*", Var("x"))))),
		Func("w", nil, Block(
			Asgn("i", Int(0)),
			While(Call(Var("i"), "<", Int(10)), Asgn("i", Call(Var("i"), "+", Int(1)))),
			If(Call(Var("i"), "==", Int(10)), Return(Double(1.5))),
			Return(nil),
		)),
		Func("n", nil, Block(Lit(ir.Nil{}), Times(Int(3), "", Block()))),
	}
	for _, tree := range trees {
		t.Run(tree.Name(), func(t *testing.T) {
			back, err := Decode(Sexp(tree))
			require.NoError(t, err)
			assert.True(t, Equal(tree, back), "%s\n!=\n%s", tree, back)
		})
	}
}

func TestDecode_ImplicitBlock(t *testing.T) {
	n, err := Decode([]any{
		[]any{"asgn", "x", []any{"lit", 1}},
		[]any{"var", "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindBlock, n.Kind())
	assert.Equal(t, 2, n.Len())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   any
		path string
	}{
		{"not a list", "x", ""},
		{"unknown tag", []any{"goto", "x"}, ""},
		{"lit string", []any{"lit", "text"}, "[1]"},
		{"call arity", []any{"call", []any{"lit", 1}, "+"}, ""},
		{"nested error", []any{"block", []any{"lit", 1}, []any{"var"}}, "[2]"},
		{"bad param", []any{"func", "f", []any{"params", []any{"var", "x"}}, []any{}}, "[2][1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestString(t *testing.T) {
	n := Call(Var("r"), "+", Double(0.5))
	assert.Equal(t, "(call (var r) + (lit 0.5))", n.String())
}

func TestTree(t *testing.T) {
	out := Tree(sumTree())
	assert.Contains(t, out, "func sum")
	assert.Contains(t, out, "times |k|")
	assert.Contains(t, out, "call +")
}

func TestHash_Stable(t *testing.T) {
	h1, err := Hash(sumTree())
	require.NoError(t, err)
	h2, err := Hash(sumTree())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := Func("sum", []string{"n"}, Block(Asgn("r", Int(1))))
	h3, err := Hash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
