// Package testutil holds function trees and helpers shared by tests.
package testutil

import (
	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
)

// Stride is the loop benchmark. It counts the even values a takes while
// i, stepping by 2, catches up with a, stepping by 1.
func Stride() *ast.Node {
	return ast.Func("stride", []string{"i", "a"}, ast.Block(
		ast.Asgn("r", ast.Int(0)),
		ast.While(ast.Call(ast.Var("i"), "<", ast.Var("a")), ast.Block(
			ast.Asgn("i", ast.Call(ast.Var("i"), "+", ast.Int(2))),
			ast.Asgn("a", ast.Call(ast.Var("a"), "+", ast.Int(1))),
			ast.If(ast.Call(ast.Call(ast.Var("a"), "%", ast.Int(2)), "==", ast.Int(0)),
				ast.Asgn("r", ast.Call(ast.Var("r"), "+", ast.Int(1)))),
		)),
		ast.Var("r"),
	))
}

// Scale maps [1, 2, 3] by multiplication with x.
func Scale() *ast.Node {
	return ast.Func("scale", []string{"x"}, ast.Block(
		ast.Map(ast.IntArray(1, 2, 3), "e", ast.Call(ast.Var("e"), "*", ast.Var("x"))),
	))
}

// Square computes x ** 2, an operator outside the compilable subset.
func Square() *ast.Node {
	return ast.Func("square", []string{"x"}, ast.Block(
		ast.Call(ast.Var("x"), "**", ast.Int(2)),
	))
}

// Add returns a + b.
func Add() *ast.Node {
	return ast.Func("add", []string{"a", "b"}, ast.Block(
		ast.Call(ast.Var("a"), "+", ast.Var("b")),
	))
}

// Sum adds the elements of the array parameter xs.
func Sum() *ast.Node {
	return ast.Func("sum", []string{"xs"}, ast.Block(
		ast.Asgn("s", ast.Int(0)),
		ast.Each(ast.Var("xs"), "e", ast.Asgn("s", ast.Call(ast.Var("s"), "+", ast.Var("e")))),
		ast.Var("s"),
	))
}

// Function wraps tree as a host function and panics on error.
func Function(tree *ast.Node) *host.Function {
	f, err := host.NewFunction(tree)
	if err != nil {
		panic(err)
	}
	return f
}

// Ints converts int64s to values.
func Ints(ns ...int64) []ir.Value {
	vs := make([]ir.Value, len(ns))
	for i, n := range ns {
		vs[i] = ir.Int(n)
	}
	return vs
}
