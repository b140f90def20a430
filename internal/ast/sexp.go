package ast

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/syntheticore/skip/internal/ir"
)

// DecodeError reports a malformed s-expression. Path locates the offending
// element, e.g. "body[2][1]".
type DecodeError struct {
	Path    string
	Message string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func decodeErr(path, format string, args ...any) error {
	return &DecodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Decode builds a tree from its s-expression form. A list whose first
// element is not a string is an implicit block.
func Decode(v any) (*Node, error) {
	return decode(v, "")
}

func decode(v any, path string) (*Node, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, decodeErr(path, "expected a list, got %T", v)
	}
	if len(list) == 0 {
		return Block(), nil
	}
	tag, ok := list[0].(string)
	if !ok {
		return decodeBlock(list, path, 0)
	}
	args := list[1:]
	at := func(i int) string { return fmt.Sprintf("%s[%d]", path, i+1) }

	switch tag {
	case "lit":
		if len(args) != 1 {
			return nil, decodeErr(path, "lit takes one value, got %d", len(args))
		}
		val, err := ir.FromAny(args[0])
		if err != nil {
			return nil, decodeErr(at(0), "%v", err)
		}
		return Lit(val), nil
	case "nil":
		return Lit(ir.Nil{}), nil
	case "var":
		name, err := nameArg(args, 0, path, tag)
		if err != nil {
			return nil, err
		}
		return Var(name), nil
	case "asgn":
		name, err := nameArg(args, 0, path, tag)
		if err != nil {
			return nil, err
		}
		switch len(args) {
		case 1:
			return Param(name), nil
		case 2:
			expr, err := decode(args[1], at(1))
			if err != nil {
				return nil, err
			}
			return Asgn(name, expr), nil
		}
		return nil, decodeErr(path, "asgn takes a name and at most one value")
	case "params":
		names := make([]string, len(args))
		for i, a := range args {
			p, err := decode(a, at(i))
			if err != nil {
				return nil, err
			}
			if !p.IsBareParam() {
				return nil, decodeErr(at(i), "parameter must be a bare asgn")
			}
			names[i] = p.Name()
		}
		return ParamList(names...), nil
	case "block":
		return decodeBlock(args, path, 1)
	case "call":
		if len(args) != 3 {
			return nil, decodeErr(path, "call takes receiver, method and argument")
		}
		recv, err := decode(args[0], at(0))
		if err != nil {
			return nil, err
		}
		method, ok := args[1].(string)
		if !ok || method == "" {
			return nil, decodeErr(at(1), "method must be a non-empty string")
		}
		arg, err := decode(args[2], at(2))
		if err != nil {
			return nil, err
		}
		return Call(recv, method, arg), nil
	case "if", "while":
		if len(args) != 2 {
			return nil, decodeErr(path, "%s takes a condition and a body", tag)
		}
		cond, err := decode(args[0], at(0))
		if err != nil {
			return nil, err
		}
		body, err := decode(args[1], at(1))
		if err != nil {
			return nil, err
		}
		if tag == "if" {
			return If(cond, body), nil
		}
		return While(cond, body), nil
	case IterTimes, IterEach, IterMap:
		var param string
		switch len(args) {
		case 2:
		case 3:
			p, ok := args[1].(string)
			if !ok {
				return nil, decodeErr(at(1), "iteration parameter must be a string")
			}
			param = p
			args = []any{args[0], args[2]}
		default:
			return nil, decodeErr(path, "%s takes a receiver, an optional parameter and a body", tag)
		}
		recv, err := decode(args[0], at(0))
		if err != nil {
			return nil, err
		}
		body, err := decode(args[1], at(len(list)-2))
		if err != nil {
			return nil, err
		}
		return Iter(tag, recv, param, body), nil
	case "return":
		switch len(args) {
		case 0:
			return Return(nil), nil
		case 1:
			expr, err := decode(args[0], at(0))
			if err != nil {
				return nil, err
			}
			return Return(expr), nil
		}
		return nil, decodeErr(path, "return takes at most one value")
	case "func":
		if len(args) != 3 {
			return nil, decodeErr(path, "func takes a name, params and a body")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, decodeErr(at(0), "function name must be a string")
		}
		params, err := decode(args[1], at(1))
		if err != nil {
			return nil, err
		}
		if params.Kind() != KindParams {
			return nil, decodeErr(at(1), "expected params, got %s", params.Kind())
		}
		body, err := decode(args[2], at(2))
		if err != nil {
			return nil, err
		}
		return Func(name, params.ParamNamesOf(), body), nil
	case "array":
		elems := make([]*Node, len(args))
		for i, a := range args {
			e, err := decode(a, at(i))
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return Array(elems...), nil
	}
	return nil, decodeErr(path, "unknown node tag %q", tag)
}

// ParamNamesOf returns the names declared by a Params node.
func (n *Node) ParamNamesOf() []string {
	names := make([]string, 0, len(n.children))
	for _, c := range n.children {
		names = append(names, c.name)
	}
	return names
}

func decodeBlock(items []any, path string, offset int) (*Node, error) {
	stmts := make([]*Node, len(items))
	for i, item := range items {
		s, err := decode(item, fmt.Sprintf("%s[%d]", path, i+offset))
		if err != nil {
			return nil, err
		}
		stmts[i] = s
	}
	return Block(stmts...), nil
}

func nameArg(args []any, i int, path, tag string) (string, error) {
	if len(args) <= i {
		return "", decodeErr(path, "%s needs a name", tag)
	}
	name, ok := args[i].(string)
	if !ok || name == "" {
		return "", decodeErr(fmt.Sprintf("%s[%d]", path, i+1), "%s name must be a non-empty string", tag)
	}
	return name, nil
}

// Sexp returns the s-expression form of the tree. Decode(Sexp(n)) is
// structurally equal to n.
func Sexp(n *Node) any {
	if n == nil {
		return []any{"nil"}
	}
	children := func(from int) []any {
		out := make([]any, 0, len(n.children)-from)
		for _, c := range n.children[from:] {
			out = append(out, Sexp(c))
		}
		return out
	}
	switch n.kind {
	case KindLit:
		if _, isNil := n.value.(ir.Nil); isNil || n.value == nil {
			return []any{"nil"}
		}
		return []any{"lit", n.value}
	case KindVar:
		return []any{"var", n.name}
	case KindAsgn:
		return append([]any{"asgn", n.name}, children(0)...)
	case KindParams:
		return append([]any{"params"}, children(0)...)
	case KindBlock:
		return append([]any{"block"}, children(0)...)
	case KindCall:
		return []any{"call", Sexp(n.Receiver()), n.name, Sexp(n.Arg())}
	case KindIf:
		return []any{"if", Sexp(n.Cond()), Sexp(n.Body())}
	case KindWhile:
		return []any{"while", Sexp(n.Cond()), Sexp(n.Body())}
	case KindIter:
		if n.param == "" {
			return []any{n.name, Sexp(n.Receiver()), Sexp(n.Body())}
		}
		return []any{n.name, Sexp(n.Receiver()), n.param, Sexp(n.Body())}
	case KindReturn:
		return append([]any{"return"}, children(0)...)
	case KindFunc:
		return []any{"func", n.name, Sexp(n.ParamList()), Sexp(n.Body())}
	case KindArray:
		return append([]any{"array"}, children(0)...)
	}
	return []any{n.kind.String()}
}

// String renders the tree as a parenthesized s-expression on one line.
func (n *Node) String() string {
	var b strings.Builder
	writeSexp(&b, Sexp(n))
	return b.String()
}

func writeSexp(b *strings.Builder, v any) {
	switch x := v.(type) {
	case []any:
		b.WriteByte('(')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeSexp(b, e)
		}
		b.WriteByte(')')
	case string:
		b.WriteString(x)
	case ir.Value:
		b.WriteString(x.String())
	default:
		fmt.Fprint(b, x)
	}
}

// Tree renders the tree as an indented outline.
func Tree(n *Node) string {
	root := treeprint.New()
	root.SetValue(label(n))
	addChildren(root, n)
	return root.String()
}

func addChildren(t treeprint.Tree, n *Node) {
	for _, c := range n.children {
		if len(c.children) == 0 {
			t.AddNode(label(c))
			continue
		}
		addChildren(t.AddBranch(label(c)), c)
	}
}

func label(n *Node) string {
	switch n.kind {
	case KindLit:
		if n.value == nil {
			return "lit nil"
		}
		return "lit " + n.value.String()
	case KindVar, KindAsgn:
		return n.kind.String() + " " + n.name
	case KindCall:
		return "call " + n.name
	case KindIter:
		if n.param != "" {
			return fmt.Sprintf("%s |%s|", n.name, n.param)
		}
		return n.name
	case KindFunc:
		return "func " + n.name
	}
	return n.kind.String()
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, fn)
	}
}

// Hash returns the content hash of the tree, stable across processes.
func Hash(n *Node) (string, error) {
	return ir.ContentHash(ir.DomainFunc, Sexp(n))
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind || a.name != b.name || a.param != b.param || len(a.children) != len(b.children) {
		return false
	}
	if a.kind == KindLit && !ir.Equal(a.value, b.value) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
