// Package loader reads function definitions from CUE sources.
//
// A source declares top-level functions and classes:
//
//	func: stride: {
//		params: ["i", "a"]
//		body: [
//			["asgn", "r", ["lit", 0]],
//			["while", ["call", ["var", "i"], "<", ["var", "a"]], [...]],
//			["var", "r"],
//		]
//	}
//
//	class: Vec: methods: dot: {params: ["x", "y"], body: [...]}
//
// Bodies use the s-expression form of package ast. CUE ints become INT
// literals, floats DOUBLE literals and bools BOOL literals.
package loader
