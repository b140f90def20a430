// Package interp evaluates syntax trees with the host dialect's original
// semantics. It is the ground truth the witness run observes and the
// compiled code is validated against.
package interp

import (
	"context"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/ir"
)

// DefaultStepLimit bounds the number of nodes one call may evaluate.
const DefaultStepLimit = 10_000_000

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithStepLimit sets the evaluation step budget. Zero or negative means
// unlimited.
func WithStepLimit(n int) Option {
	return func(in *Interpreter) {
		in.stepLimit = n
	}
}

// WithRecorder attaches a recorder that observes the evaluation.
func WithRecorder(r *Recorder) Option {
	return func(in *Interpreter) {
		in.recorder = r
	}
}

// Interpreter evaluates one call. It is not safe for concurrent use;
// create one per call.
type Interpreter struct {
	stepLimit int
	steps     int
	recorder  *Recorder
	vars      map[string]ir.Value
	ctx       context.Context
}

// New creates an interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{stepLimit: DefaultStepLimit}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Steps returns the number of nodes evaluated so far.
func (in *Interpreter) Steps() int { return in.steps }

// returned carries an explicit return up to the function boundary.
type returned struct {
	value ir.Value
}

func (returned) Error() string { return "return outside of function" }

// Call evaluates the function fn with args bound to its parameters.
func (in *Interpreter) Call(ctx context.Context, fn *ast.Node, args []ir.Value) (ir.Value, error) {
	if fn.Kind() != ast.KindFunc {
		return nil, newError(ErrCodeTypeError, "cannot call %s node", fn.Kind())
	}
	params := fn.Params()
	if len(args) != len(params) {
		return nil, newError(ErrCodeArgument, "wrong number of arguments (given %d, expected %d)", len(args), len(params))
	}
	in.ctx = ctx
	in.vars = make(map[string]ir.Value, len(params))
	for i, name := range params {
		in.assign(name, args[i])
	}
	v, err := in.eval(fn.Body())
	if r, ok := err.(returned); ok {
		return r.value, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Call is shorthand for New(opts...).Call(ctx, fn, args).
func Call(ctx context.Context, fn *ast.Node, args []ir.Value, opts ...Option) (ir.Value, error) {
	return New(opts...).Call(ctx, fn, args)
}

func (in *Interpreter) assign(name string, v ir.Value) {
	in.vars[name] = v
	in.recorder.observeVar(name, v)
}

func (in *Interpreter) lookup(name string) ir.Value {
	if v, ok := in.vars[name]; ok {
		return v
	}
	return ir.Nil{}
}

func (in *Interpreter) tick(n *ast.Node) error {
	in.steps++
	if in.stepLimit > 0 && in.steps > in.stepLimit {
		err := newError(ErrCodeStepsExceeded, "evaluation exceeded %d steps", in.stepLimit)
		err.Node = n.String()
		return err
	}
	if in.steps&0xffff == 0 && in.ctx != nil {
		if err := in.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) eval(n *ast.Node) (ir.Value, error) {
	if n == nil {
		return ir.Nil{}, nil
	}
	if err := in.tick(n); err != nil {
		return nil, err
	}
	switch n.Kind() {
	case ast.KindLit:
		if n.Value() == nil {
			return ir.Nil{}, nil
		}
		return n.Value(), nil

	case ast.KindVar:
		return in.lookup(n.Name()), nil

	case ast.KindAsgn:
		if n.IsBareParam() {
			return in.lookup(n.Name()), nil
		}
		v, err := in.eval(n.Expr())
		if err != nil {
			return nil, err
		}
		in.assign(n.Name(), v)
		return v, nil

	case ast.KindParams:
		return ir.Nil{}, nil

	case ast.KindBlock:
		var last ir.Value = ir.Nil{}
		for c := n.Cursor(); c.More(); {
			v, err := in.eval(c.Next())
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case ast.KindCall:
		x, err := in.eval(n.Receiver())
		if err != nil {
			return nil, err
		}
		y, err := in.eval(n.Arg())
		if err != nil {
			return nil, err
		}
		v, err := binary(n.Name(), x, y)
		if err != nil {
			if re, ok := err.(*RuntimeError); ok {
				re.Node = n.String()
			}
			return nil, err
		}
		return v, nil

	case ast.KindIf:
		cond, err := in.eval(n.Cond())
		if err != nil {
			return nil, err
		}
		if !ir.Truthy(cond) {
			return ir.Nil{}, nil
		}
		return in.eval(n.Body())

	case ast.KindWhile:
		for {
			cond, err := in.eval(n.Cond())
			if err != nil {
				return nil, err
			}
			if !ir.Truthy(cond) {
				return ir.Nil{}, nil
			}
			if _, err := in.eval(n.Body()); err != nil {
				return nil, err
			}
		}

	case ast.KindIter:
		return in.iterate(n)

	case ast.KindReturn:
		v, err := in.eval(n.Expr())
		if err != nil {
			return nil, err
		}
		return nil, returned{value: v}

	case ast.KindArray:
		arr := make(ir.Array, 0, n.Len())
		for c := n.Cursor(); c.More(); {
			v, err := in.eval(c.Next())
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil

	case ast.KindFunc:
		return nil, newError(ErrCodeTypeError, "nested function definitions are not supported")
	}
	return nil, newError(ErrCodeTypeError, "cannot evaluate %s node", n.Kind())
}

func (in *Interpreter) iterate(n *ast.Node) (ir.Value, error) {
	recv, err := in.eval(n.Receiver())
	if err != nil {
		return nil, err
	}
	param := n.Param()
	prev, hadPrev := in.vars[param]
	defer func() {
		if param == "" {
			return
		}
		if hadPrev {
			in.vars[param] = prev
		} else {
			delete(in.vars, param)
		}
	}()
	bind := func(v ir.Value) {
		if param != "" {
			in.assign(param, v)
		}
	}

	switch n.Name() {
	case ast.IterTimes:
		count, ok := recv.(ir.Int)
		if !ok {
			return nil, &RuntimeError{Code: ErrCodeUndefinedOperator, Message: "undefined method 'times' for " + recv.String(), Node: n.String()}
		}
		for k := ir.Int(0); k < count; k++ {
			bind(k)
			if _, err := in.eval(n.Body()); err != nil {
				return nil, err
			}
		}
		return count, nil

	case ast.IterEach, ast.IterMap:
		arr, ok := recv.(ir.Array)
		if !ok {
			return nil, &RuntimeError{Code: ErrCodeUndefinedOperator, Message: "undefined method '" + n.Name() + "' for " + recv.String(), Node: n.String()}
		}
		in.recorder.observeArray(n, arr)
		var out ir.Array
		if n.Name() == ast.IterMap {
			out = make(ir.Array, 0, len(arr))
		}
		for _, e := range arr {
			bind(e)
			v, err := in.eval(n.Body())
			if err != nil {
				return nil, err
			}
			if out != nil {
				out = append(out, v)
			}
		}
		if out != nil {
			return out, nil
		}
		return arr, nil
	}
	return nil, &RuntimeError{Code: ErrCodeUndefinedOperator, Message: "undefined iteration '" + n.Name() + "'", Node: n.String()}
}
