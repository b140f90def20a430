// Package ast defines the syntax tree of the host dialect's numeric subset.
//
// Trees are produced once by a collaborator (the loader, or direct
// construction in Go code) and are immutable afterwards. Consumers read a
// node's children through accessors or a Cursor; nothing in skip mutates a
// tree, so one tree can be lowered any number of times, from any goroutine.
//
// The s-expression form used by Decode and Sexp is also the on-disk form
// inside CUE sources:
//
//	["func", "sum", ["params", ["asgn", "n"]], [
//	    ["asgn", "r", ["lit", 0]],
//	    ["times", ["var", "n"], "k", ["asgn", "r", ["call", ["var", "r"], "+", ["var", "k"]]]],
//	    ["var", "r"],
//	]]
package ast
