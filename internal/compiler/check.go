package compiler

import (
	"fmt"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

// ValidationError is a static finding about a tree.
type ValidationError struct {
	Path    string `json:"path"`
	Node    string `json:"node"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Check validates fn against the supported subset without compiling it.
// Returns all findings (does not fail-fast). Element iterations over
// variables are accepted here; whether their arrays are known is only
// decided when compiling.
func Check(fn *ast.Node) []ValidationError {
	c := &checker{}
	if fn == nil || fn.Kind() != ast.KindFunc {
		c.add("", fn, ErrNotAFunction, "root must be a function")
		return c.errs
	}
	c.walk(fn.Body(), "body", nil)
	return c.errs
}

type checker struct {
	errs []ValidationError
}

func (c *checker) add(path string, n *ast.Node, code, format string, args ...any) {
	node := "nil"
	if n != nil {
		node = n.String()
	}
	c.errs = append(c.errs, ValidationError{
		Path:    path,
		Node:    node,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

// walk visits n. unrolled holds the parameters of enclosing element
// iterations.
func (c *checker) walk(n *ast.Node, path string, unrolled map[string]bool) {
	if n == nil {
		return
	}
	child := func(i int) string { return fmt.Sprintf("%s[%d]", path, i) }

	switch n.Kind() {
	case ast.KindLit:
		if _, isNil := n.Value().(ir.Nil); isNil || n.Value() == nil {
			return
		}
		if _, err := ir.TypeOf(n.Value()); err != nil {
			c.add(path, n, ErrUnsupportedLiteral, "%v", err)
		}
		return
	case ast.KindAsgn:
		if unrolled[n.Name()] {
			c.add(path, n, ErrAssignIterParam, "cannot assign to unrolled iteration parameter %q", n.Name())
		}
	case ast.KindCall:
		if _, ok := backend.LookupOp(n.Name()); !ok {
			c.add(path, n, ErrUnsupportedOperator, "operator %q is not in the allow-list", n.Name())
		}
	case ast.KindIter:
		recv := n.Receiver()
		if recv == nil {
			c.add(path, n, ErrUnsupportedReceiver, "%s has no receiver", n.Name())
			return
		}
		switch n.Name() {
		case ast.IterTimes:
			if recv.Kind() == ast.KindLit && recv.Value() != nil {
				if _, isInt := recv.Value().(ir.Int); !isInt {
					c.add(child(0), recv, ErrUnsupportedReceiver, "times needs an INT receiver")
				}
			}
			if recv.Kind() == ast.KindArray {
				c.add(child(0), recv, ErrUnsupportedReceiver, "times needs an INT receiver")
			}
		case ast.IterEach, ast.IterMap:
			if recv.Kind() == ast.KindLit {
				c.add(child(0), recv, ErrUnsupportedReceiver, "%s needs an array receiver", n.Name())
			}
			if n.Param() != "" {
				inner := make(map[string]bool, len(unrolled)+1)
				for k := range unrolled {
					inner[k] = true
				}
				inner[n.Param()] = true
				c.walk(recv, child(0), unrolled)
				c.walk(n.Body(), child(1), inner)
				return
			}
		default:
			c.add(path, n, ErrUnsupportedNode, "iteration method %q is not supported", n.Name())
		}
	case ast.KindFunc:
		c.add(path, n, ErrUnsupportedNode, "nested function definitions are not supported")
		return
	case ast.KindVar, ast.KindParams, ast.KindBlock, ast.KindIf, ast.KindWhile, ast.KindReturn, ast.KindArray:
	default:
		c.add(path, n, ErrUnsupportedNode, "cannot compile %s node", n.Kind())
		return
	}

	for i := 0; i < n.Len(); i++ {
		c.walk(n.Child(i), child(i), unrolled)
	}
}
