package ast

import (
	"fmt"

	"github.com/syntheticore/skip/internal/ir"
)

// Kind tags a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLit          // literal
	KindVar          // variable reference
	KindAsgn         // variable assignment, or a bare parameter when it has no value
	KindParams       // parameter list
	KindBlock        // statement sequence
	KindCall         // binary operator call: receiver, method, one argument
	KindIf           // single-arm conditional
	KindWhile        // pre-test loop
	KindIter         // bounded iteration: times, each, map
	KindReturn       // explicit return
	KindFunc         // function wrapper: parameter list and body
	KindArray        // array literal
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindLit:     "lit",
	KindVar:     "var",
	KindAsgn:    "asgn",
	KindParams:  "params",
	KindBlock:   "block",
	KindCall:    "call",
	KindIf:      "if",
	KindWhile:   "while",
	KindIter:    "iter",
	KindReturn:  "return",
	KindFunc:    "func",
	KindArray:   "array",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Iteration methods accepted by KindIter nodes.
const (
	IterTimes = "times"
	IterEach  = "each"
	IterMap   = "map"
)

// Node is an immutable syntax tree node.
//
// Field usage by kind:
//
//	Lit     value
//	Var     name
//	Asgn    name, children [expr] (none for a bare parameter)
//	Params  children: bare Asgn nodes in declaration order
//	Block   children: statements
//	Call    name = method, children [receiver, argument]
//	If      children [cond, body]
//	While   children [cond, body]
//	Iter    name = times|each|map, param, children [receiver, body]
//	Return  children [expr] (optional)
//	Func    name, children [params, body]
//	Array   children: elements
type Node struct {
	kind     Kind
	name     string
	param    string
	value    ir.Value
	children []*Node
}

func newNode(kind Kind, name string, children ...*Node) *Node {
	c := make([]*Node, len(children))
	copy(c, children)
	return &Node{kind: kind, name: name, children: c}
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the variable, method or function name of the node.
func (n *Node) Name() string { return n.name }

// Value returns the literal value of a Lit node.
func (n *Node) Value() ir.Value { return n.value }

// Param returns the iteration parameter name of an Iter node ("" if none).
func (n *Node) Param() string { return n.param }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Child returns child i, or nil if out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Cursor returns a read-only cursor over the node's children.
func (n *Node) Cursor() *Cursor {
	return &Cursor{node: n}
}

// Receiver returns the receiver of a Call or Iter node.
func (n *Node) Receiver() *Node { return n.Child(0) }

// Arg returns the single argument of a Call node.
func (n *Node) Arg() *Node { return n.Child(1) }

// Cond returns the condition of an If or While node.
func (n *Node) Cond() *Node { return n.Child(0) }

// Body returns the body of an If, While, Iter or Func node.
func (n *Node) Body() *Node {
	switch n.kind {
	case KindIf, KindWhile, KindIter, KindFunc:
		return n.Child(1)
	}
	return nil
}

// Expr returns the value expression of an Asgn or Return node (nil if none).
func (n *Node) Expr() *Node { return n.Child(0) }

// IsBareParam reports whether an Asgn node declares a parameter.
func (n *Node) IsBareParam() bool {
	return n.kind == KindAsgn && len(n.children) == 0
}

// ParamList returns the parameter list of a Func node.
func (n *Node) ParamList() *Node {
	if n.kind != KindFunc {
		return nil
	}
	return n.Child(0)
}

// Params returns the declared parameter names of a Func node.
func (n *Node) Params() []string {
	pl := n.ParamList()
	if pl == nil {
		return nil
	}
	names := make([]string, 0, pl.Len())
	for c := pl.Cursor(); c.More(); {
		names = append(names, c.Next().name)
	}
	return names
}

// Arity returns the declared parameter count of a Func node.
func (n *Node) Arity() int {
	if pl := n.ParamList(); pl != nil {
		return pl.Len()
	}
	return 0
}

// Cursor walks a node's children in order without mutating the tree.
type Cursor struct {
	node *Node
	pos  int
}

// More reports whether children remain.
func (c *Cursor) More() bool {
	return c.pos < len(c.node.children)
}

// Next returns the next child and advances, or nil when exhausted.
func (c *Cursor) Next() *Node {
	if !c.More() {
		return nil
	}
	n := c.node.children[c.pos]
	c.pos++
	return n
}

// Peek returns the next child without advancing.
func (c *Cursor) Peek() *Node {
	if !c.More() {
		return nil
	}
	return c.node.children[c.pos]
}

// Remaining returns the number of unread children.
func (c *Cursor) Remaining() int {
	return len(c.node.children) - c.pos
}

// Lit creates a literal node.
func Lit(v ir.Value) *Node {
	return &Node{kind: KindLit, value: v}
}

// Int is shorthand for Lit(ir.Int(n)).
func Int(n int64) *Node { return Lit(ir.Int(n)) }

// Double is shorthand for Lit(ir.Double(f)).
func Double(f float64) *Node { return Lit(ir.Double(f)) }

// Var creates a variable reference.
func Var(name string) *Node {
	return newNode(KindVar, name)
}

// Asgn creates an assignment of expr to name.
func Asgn(name string, expr *Node) *Node {
	return newNode(KindAsgn, name, expr)
}

// Param creates a bare parameter declaration.
func Param(name string) *Node {
	return newNode(KindAsgn, name)
}

// ParamList creates a parameter list from names.
func ParamList(names ...string) *Node {
	params := make([]*Node, len(names))
	for i, name := range names {
		params[i] = Param(name)
	}
	return newNode(KindParams, "", params...)
}

// Block creates a statement sequence.
func Block(stmts ...*Node) *Node {
	return newNode(KindBlock, "", stmts...)
}

// Call creates a binary operator call recv.method(arg).
func Call(recv *Node, method string, arg *Node) *Node {
	return newNode(KindCall, method, recv, arg)
}

// If creates a single-arm conditional.
func If(cond, body *Node) *Node {
	return newNode(KindIf, "", cond, body)
}

// While creates a pre-test loop. The condition should be a Call node.
func While(cond, body *Node) *Node {
	return newNode(KindWhile, "", cond, body)
}

// Iter creates a bounded iteration node.
func Iter(method string, recv *Node, param string, body *Node) *Node {
	n := newNode(KindIter, method, recv, body)
	n.param = param
	return n
}

// Times creates "recv.times { |param| body }".
func Times(recv *Node, param string, body *Node) *Node {
	return Iter(IterTimes, recv, param, body)
}

// Each creates "recv.each { |param| body }".
func Each(recv *Node, param string, body *Node) *Node {
	return Iter(IterEach, recv, param, body)
}

// Map creates "recv.map { |param| body }".
func Map(recv *Node, param string, body *Node) *Node {
	return Iter(IterMap, recv, param, body)
}

// Return creates an explicit return. expr may be nil.
func Return(expr *Node) *Node {
	if expr == nil {
		return newNode(KindReturn, "")
	}
	return newNode(KindReturn, "", expr)
}

// Func creates a function wrapper.
func Func(name string, params []string, body *Node) *Node {
	return newNode(KindFunc, name, ParamList(params...), body)
}

// Array creates an array literal.
func Array(elems ...*Node) *Node {
	return newNode(KindArray, "", elems...)
}

// IntArray is shorthand for an array literal of Int literals.
func IntArray(ns ...int64) *Node {
	elems := make([]*Node, len(ns))
	for i, n := range ns {
		elems[i] = Int(n)
	}
	return Array(elems...)
}

// LiteralArray returns the values of an array literal whose elements are
// all literals. ok is false otherwise.
func (n *Node) LiteralArray() (ir.Array, bool) {
	if n == nil || n.kind != KindArray {
		return nil, false
	}
	arr := make(ir.Array, 0, len(n.children))
	for _, c := range n.children {
		if c.kind != KindLit {
			return nil, false
		}
		arr = append(arr, c.value)
	}
	return arr, true
}
