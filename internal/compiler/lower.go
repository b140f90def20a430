package compiler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

// Observations is what a witness run learned about a tree: the arrays
// element iterations ran over and the widest type of each variable.
type Observations interface {
	Array(n *ast.Node) (ir.Array, bool)
	VarType(name string) (ir.Type, bool)
}

// Lowerer translates one tree into builder calls. A nil value from Lower
// means absent: the node produced nothing the builder can use.
type Lowerer struct {
	b      backend.Builder
	env    *Env
	arity  int
	obs    Observations
	logger *zap.Logger
	report *Report
	consts map[string]ir.Array
}

// NewLowerer creates a lowerer emitting into b. arity is the number of
// positional parameter slots the builder exposes.
func NewLowerer(b backend.Builder, env *Env, arity int, opts Options) *Lowerer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lowerer{
		b:      b,
		env:    env,
		arity:  arity,
		obs:    opts.Observations,
		logger: logger,
		report: &Report{Signature: b.Signature()},
	}
}

// Report returns what the lowerer has done so far.
func (l *Lowerer) Report() *Report { return l.report }

// unsupported records a diagnostic and yields absent.
func (l *Lowerer) unsupported(n *ast.Node, code, format string, args ...any) (backend.Value, error) {
	l.diagnose(n, code, format, args...)
	return nil, nil
}

func (l *Lowerer) diagnose(n *ast.Node, code, format string, args ...any) {
	d := Diagnostic{Code: code, Kind: n.Kind(), Node: n.String(), Message: fmt.Sprintf(format, args...)}
	l.report.Diagnostics = append(l.report.Diagnostics, d)
	l.logger.Warn("cannot lower node",
		zap.String("code", d.Code),
		zap.Stringer("kind", n.Kind()),
		zap.String("node", d.Node),
		zap.String("reason", d.Message))
}

func (l *Lowerer) zero(t ir.Type) (backend.Value, error) {
	return l.b.Constant(ir.Zero(t))
}

// orZero substitutes the zero constant of t for an absent value.
func (l *Lowerer) orZero(v backend.Value, t ir.Type) (backend.Value, error) {
	if v != nil {
		return v, nil
	}
	return l.zero(t)
}

func (l *Lowerer) observedType(name string) (ir.Type, bool) {
	if l.obs == nil {
		return ir.Type{}, false
	}
	return l.obs.VarType(name)
}

// Lower lowers n depth-first and returns its value.
func (l *Lowerer) Lower(n *ast.Node) (backend.Value, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind() {
	case ast.KindLit:
		return l.lowerLit(n)
	case ast.KindVar:
		return l.lowerVar(n)
	case ast.KindAsgn:
		if n.IsBareParam() {
			return l.lowerBareParam(n)
		}
		return l.lowerAsgn(n)
	case ast.KindParams:
		return l.lowerParams(n)
	case ast.KindBlock:
		var last backend.Value
		for c := n.Cursor(); c.More(); {
			v, err := l.Lower(c.Next())
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case ast.KindCall:
		return l.lowerCall(n)
	case ast.KindIf:
		return l.lowerIf(n)
	case ast.KindWhile:
		return l.lowerWhile(n)
	case ast.KindIter:
		switch n.Name() {
		case ast.IterTimes:
			return l.lowerTimes(n)
		case ast.IterEach, ast.IterMap:
			return l.lowerUnrolled(n)
		}
		return l.unsupported(n, ErrUnsupportedNode, "iteration method %q is not supported", n.Name())
	case ast.KindReturn:
		return l.lowerReturn(n)
	case ast.KindFunc:
		l.consts = constantArrays(n)
		if _, err := l.Lower(n.ParamList()); err != nil {
			return nil, err
		}
		return l.Lower(n.Body())
	case ast.KindArray:
		return l.lowerArray(n)
	}
	return l.unsupported(n, ErrUnsupportedNode, "cannot compile %s node", n.Kind())
}

func (l *Lowerer) lowerLit(n *ast.Node) (backend.Value, error) {
	if _, isNil := n.Value().(ir.Nil); isNil || n.Value() == nil {
		return nil, nil
	}
	if _, err := ir.TypeOf(n.Value()); err != nil {
		return l.unsupported(n, ErrUnsupportedLiteral, "%v", err)
	}
	return l.b.Constant(n.Value())
}

func (l *Lowerer) lowerVar(n *ast.Node) (backend.Value, error) {
	if v, ok := l.env.substitution(n.Name()); ok {
		return v, nil
	}
	if v, ok := l.env.Lookup(n.Name()); ok {
		return v, nil
	}
	// Referenced before assignment: materialize a zero binding.
	t, ok := l.observedType(n.Name())
	if !ok {
		t = ir.IntType
	}
	v, err := l.b.Local(t)
	if err != nil {
		return nil, err
	}
	l.env.Bind(n.Name(), v)
	l.report.Locals++
	return v, nil
}

func (l *Lowerer) lowerAsgn(n *ast.Node) (backend.Value, error) {
	name := n.Name()
	if _, ok := l.env.substitution(name); ok {
		return l.unsupported(n, ErrAssignIterParam, "cannot assign to unrolled iteration parameter %q", name)
	}
	v, err := l.Lower(n.Expr())
	if err != nil {
		return nil, err
	}

	if dst, ok := l.env.Lookup(name); ok {
		if v, err = l.orZero(v, dst.Type()); err != nil {
			return nil, err
		}
		if !backend.Assignable(dst.Type(), v.Type()) || narrows(dst.Type(), v.Type()) {
			return l.unsupported(n, ErrTypeMismatch, "cannot assign %s to %q of type %s", v.Type(), name, dst.Type())
		}
		if err := l.b.Store(dst, v); err != nil {
			return nil, err
		}
		return dst, nil
	}

	t, observed := l.observedType(name)
	switch {
	case v == nil && !observed:
		t = ir.IntType
	case v == nil:
	case !observed || !backend.Assignable(t, v.Type()):
		t = v.Type()
	}
	if v, err = l.orZero(v, t); err != nil {
		return nil, err
	}
	dst, err := l.b.Local(t)
	if err != nil {
		return nil, err
	}
	if err := l.b.Store(dst, v); err != nil {
		return nil, err
	}
	l.env.Bind(name, dst)
	l.report.Locals++
	return dst, nil
}

// lowerBareParam registers a parameter outside a parameter list. A lone
// block parameter is bound to slot 0.
func (l *Lowerer) lowerBareParam(n *ast.Node) (backend.Value, error) {
	if _, ok := l.env.Slot(n.Name()); ok {
		return nil, nil
	}
	return nil, l.bindParam(n, 0)
}

func (l *Lowerer) bindParam(n *ast.Node, slot int) error {
	if slot >= l.arity {
		_, err := l.unsupported(n, ErrParamSlot, "parameter %q has no slot (arity %d)", n.Name(), l.arity)
		return err
	}
	p, err := l.b.Param(slot)
	if err != nil {
		return err
	}
	// The witness run stored a wider value into the parameter, so it
	// lives in a local of that type.
	if t, ok := l.observedType(n.Name()); ok && t != p.Type() && narrows(p.Type(), t) {
		local, err := l.b.Local(t)
		if err != nil {
			return err
		}
		if err := l.b.Store(local, p); err != nil {
			return err
		}
		l.report.Locals++
		p = local
	}
	l.env.bindParam(n.Name(), slot, p)
	return nil
}

// narrows reports whether storing src into dst would drop the fraction
// of a DOUBLE.
func narrows(dst, src ir.Type) bool {
	if dst.Tag == ir.TagArray && src.Tag == ir.TagArray {
		dst, src = dst.ElemType(), src.ElemType()
	}
	return dst.Tag == ir.TagInt && src.Tag == ir.TagDouble
}

func (l *Lowerer) lowerParams(n *ast.Node) (backend.Value, error) {
	slot := 0
	for c := n.Cursor(); c.More(); slot++ {
		if err := l.bindParam(c.Next(), slot); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (l *Lowerer) lowerCall(n *ast.Node) (backend.Value, error) {
	x, err := l.Lower(n.Receiver())
	if err != nil {
		return nil, err
	}
	y, err := l.Lower(n.Arg())
	if err != nil {
		return nil, err
	}
	op, ok := backend.LookupOp(n.Name())
	if !ok {
		return l.unsupported(n, ErrUnsupportedOperator, "operator %q is not in the allow-list", n.Name())
	}
	if x == nil && y == nil {
		return l.unsupported(n, ErrTypeMismatch, "both operands are absent")
	}
	if x == nil {
		x, err = l.zero(y.Type())
	} else if y == nil {
		y, err = l.zero(x.Type())
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := backend.OperandType(op, x.Type(), y.Type()); err != nil {
		return l.unsupported(n, ErrTypeMismatch, "%v", err)
	}
	return l.b.Binary(op, x, y)
}

// condition lowers a loop or branch condition. Absent means false.
func (l *Lowerer) condition(n *ast.Node) (backend.Value, error) {
	c, err := l.Lower(n)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return l.b.Constant(ir.Bool(false))
	}
	if !c.Type().IsScalar() {
		return l.b.Constant(ir.Bool(true))
	}
	return c, nil
}

func (l *Lowerer) lowerIf(n *ast.Node) (backend.Value, error) {
	cond, err := l.condition(n.Cond())
	if err != nil {
		return nil, err
	}
	err = l.b.If(cond, func() error {
		_, err := l.Lower(n.Body())
		return err
	})
	return nil, err
}

func (l *Lowerer) lowerWhile(n *ast.Node) (backend.Value, error) {
	l.report.Loops++
	err := l.b.While(
		func() (backend.Value, error) { return l.condition(n.Cond()) },
		func() error {
			_, err := l.Lower(n.Body())
			return err
		},
	)
	return nil, err
}

// lowerTimes emits a counted pre-test loop. The iteration parameter gets a
// fresh copy of the counter on every pass.
func (l *Lowerer) lowerTimes(n *ast.Node) (backend.Value, error) {
	bound, err := l.Lower(n.Receiver())
	if err != nil {
		return nil, err
	}
	if bound == nil {
		return l.unsupported(n, ErrUnsupportedReceiver, "iteration bound is absent")
	}
	if bound.Type() != ir.IntType {
		return l.unsupported(n, ErrUnsupportedReceiver, "times needs an INT receiver, got %s", bound.Type())
	}
	counter, err := l.b.Local(ir.IntType)
	if err != nil {
		return nil, err
	}
	one, err := l.b.Constant(ir.Int(1))
	if err != nil {
		return nil, err
	}
	var param backend.Value
	if n.Param() != "" {
		if param, err = l.b.Local(ir.IntType); err != nil {
			return nil, err
		}
	}
	l.report.Loops++
	err = l.b.While(
		func() (backend.Value, error) { return l.b.Binary(backend.OpLT, counter, bound) },
		func() error {
			if param != nil {
				if err := l.b.Store(param, counter); err != nil {
					return err
				}
				defer l.env.shadow(n.Param(), param)()
			}
			if _, err := l.Lower(n.Body()); err != nil {
				return err
			}
			next, err := l.b.Binary(backend.OpAdd, counter, one)
			if err != nil {
				return err
			}
			return l.b.Store(counter, next)
		},
	)
	if err != nil {
		return nil, err
	}
	return bound, nil
}

// lowerUnrolled lowers the body of an each or map once per element of an
// array whose length is known at compile time, substituting the element
// for the iteration parameter.
func (l *Lowerer) lowerUnrolled(n *ast.Node) (backend.Value, error) {
	elems, arr, ok, err := l.unrollElements(n)
	if err != nil || !ok {
		return nil, err
	}

	outputs := make([]backend.Value, 0, len(elems))
	for _, elem := range elems {
		restore := func() {}
		if n.Param() != "" {
			restore = l.env.substitute(n.Param(), elem)
		}
		v, err := l.Lower(n.Body())
		restore()
		if err != nil {
			return nil, err
		}
		l.report.Unrolled++
		if n.Name() != ast.IterMap {
			continue
		}
		if v == nil {
			return l.unsupported(n, ErrTypeMismatch, "map body yields no value for element %d", len(outputs))
		}
		out, err := l.b.Local(v.Type())
		if err != nil {
			return nil, err
		}
		if err := l.b.Store(out, v); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}

	if n.Name() == ast.IterMap {
		if len(outputs) == 0 {
			return l.unsupported(n, ErrUnsupportedLiteral, "map over an empty array has no element type")
		}
		if _, err := backend.TupleType(typesOf(outputs)); err != nil {
			return l.unsupported(n, ErrTypeMismatch, "%v", err)
		}
		return l.b.Tuple(outputs)
	}
	// each yields its receiver.
	if arr != nil {
		if _, err := ir.TypeOf(arr); err != nil {
			return nil, nil
		}
		return l.b.Constant(arr)
	}
	if _, err := backend.TupleType(typesOf(elems)); err != nil {
		return nil, nil
	}
	return l.b.Tuple(elems)
}

// unrollElements resolves the receiver of an each or map to one value per
// element. arr is set when the whole array is a compile-time constant.
// Arrays only the witness run knows are used with a diagnostic, since
// nothing ties them to the arguments of a later call.
func (l *Lowerer) unrollElements(n *ast.Node) (elems []backend.Value, arr ir.Array, ok bool, err error) {
	recv := n.Receiver()
	arr, ok = recv.LiteralArray()
	if !ok && recv != nil && recv.Kind() == ast.KindVar {
		arr, ok = l.consts[recv.Name()]
	}
	if !ok && recv != nil && recv.Kind() == ast.KindArray {
		elems, ok, err = l.snapshotElements(n, recv)
		return elems, nil, ok, err
	}
	if !ok && l.obs != nil {
		if arr, ok = l.obs.Array(n); ok {
			l.diagnose(n, ErrUnknownArray, "%s over %s unrolled with the array seen by the witness run", n.Name(), recv)
		}
	}
	if !ok {
		_, err = l.unsupported(n, ErrUnknownArray, "%s over an array unknown at compile time", n.Name())
		return nil, nil, false, err
	}

	elems = make([]backend.Value, 0, len(arr))
	for _, e := range arr {
		if !isScalar(e) {
			_, err = l.unsupported(n, ErrUnsupportedLiteral, "cannot unroll over element %s", e)
			return nil, nil, false, err
		}
		v, err := l.b.Constant(e)
		if err != nil {
			return nil, nil, false, err
		}
		elems = append(elems, v)
	}
	return elems, arr, true, nil
}

// snapshotElements lowers the elements of an array expression in order
// and copies each into a local, so the body sees the values the array was
// built from even if it assigns to their sources.
func (l *Lowerer) snapshotElements(n, recv *ast.Node) ([]backend.Value, bool, error) {
	elems := make([]backend.Value, 0, recv.Len())
	for c := recv.Cursor(); c.More(); {
		e := c.Next()
		v, err := l.Lower(e)
		if err != nil {
			return nil, false, err
		}
		if v == nil || !v.Type().IsScalar() {
			_, err := l.unsupported(n, ErrUnsupportedLiteral, "cannot unroll over element %s", e)
			return nil, false, err
		}
		local, err := l.b.Local(v.Type())
		if err != nil {
			return nil, false, err
		}
		if err := l.b.Store(local, v); err != nil {
			return nil, false, err
		}
		l.report.Locals++
		elems = append(elems, local)
	}
	return elems, true, nil
}

// constantArrays returns the variables of fn that are only ever assigned
// one and the same literal array.
func constantArrays(fn *ast.Node) map[string]ir.Array {
	found := make(map[string]ir.Array)
	varying := make(map[string]bool)
	for _, p := range fn.Params() {
		varying[p] = true
	}
	ast.Walk(fn.Body(), func(n *ast.Node) bool {
		switch n.Kind() {
		case ast.KindIter:
			if n.Param() != "" {
				varying[n.Param()] = true
			}
		case ast.KindAsgn:
			arr, ok := n.Expr().LiteralArray()
			prev, seen := found[n.Name()]
			if !ok || (seen && !ir.Equal(prev, arr)) {
				varying[n.Name()] = true
			} else {
				found[n.Name()] = arr
			}
		}
		return true
	})
	for name := range varying {
		delete(found, name)
	}
	return found
}

func isScalar(v ir.Value) bool {
	t, err := ir.TypeOf(v)
	return err == nil && t.IsScalar()
}

func (l *Lowerer) lowerReturn(n *ast.Node) (backend.Value, error) {
	v, err := l.Lower(n.Expr())
	if err != nil {
		return nil, err
	}
	result := l.b.Signature().Result()
	if v, err = l.orZero(v, result); err != nil {
		return nil, err
	}
	if !backend.Assignable(result, v.Type()) || narrows(result, v.Type()) {
		return l.unsupported(n, ErrTypeMismatch, "cannot return %s from %s", v.Type(), l.b.Signature())
	}
	return nil, l.b.Return(v)
}

func (l *Lowerer) lowerArray(n *ast.Node) (backend.Value, error) {
	if arr, ok := n.LiteralArray(); ok {
		if _, err := ir.TypeOf(arr); err != nil {
			return l.unsupported(n, ErrUnsupportedLiteral, "%v", err)
		}
		return l.b.Constant(arr)
	}
	elems := make([]backend.Value, 0, n.Len())
	for c := n.Cursor(); c.More(); {
		e := c.Next()
		v, err := l.Lower(e)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return l.unsupported(n, ErrTypeMismatch, "array element %s is absent", e)
		}
		elems = append(elems, v)
	}
	if _, err := backend.TupleType(typesOf(elems)); err != nil {
		return l.unsupported(n, ErrTypeMismatch, "%v", err)
	}
	return l.b.Tuple(elems)
}

func typesOf(vs []backend.Value) []ir.Type {
	ts := make([]ir.Type, len(vs))
	for i, v := range vs {
		ts[i] = v.Type()
	}
	return ts
}
