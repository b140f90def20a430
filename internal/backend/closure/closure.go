// Package closure is the executable backend. It translates builder calls
// into Go closures over an unboxed register frame: INT registers hold the
// two's complement bits, DOUBLE registers the IEEE 754 bits and BOOL
// registers 0 or 1.
package closure

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

// Name is the registry name of this backend.
const Name = "closure"

func init() {
	backend.Register(New())
}

// Backend builds closure artifacts. It is always available.
type Backend struct{}

// New creates the backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

func (*Backend) Available() error { return nil }

func (*Backend) NewFunction(name string, sig ir.Signature) (backend.Builder, error) {
	if err := backend.CheckSignature(sig); err != nil {
		return nil, err
	}
	b := &builder{name: name, sig: sig}
	b.steps = &b.body
	b.listf("func %s%s", name, sig)
	b.depth = 1
	for i, p := range sig.Params() {
		v := b.alloc(p)
		b.params = append(b.params, v)
		b.listf("%s = param %d %s", v, i, p)
	}
	b.result = b.alloc(sig.Result())
	return b, nil
}

// step runs one instruction. done reports that a return was executed.
type step func(fr []uint64) (done bool, err error)

func run(steps []step, fr []uint64) (bool, error) {
	for _, s := range steps {
		if done, err := s(fr); done || err != nil {
			return done, err
		}
	}
	return false, nil
}

// value is a register handle. Scalars use one register, arrays one per
// element.
type value struct {
	typ  ir.Type
	regs []int
}

func (v *value) Type() ir.Type { return v.typ }

func (v *value) String() string {
	if len(v.regs) == 1 {
		return fmt.Sprintf("r%d", v.regs[0])
	}
	parts := make([]string, len(v.regs))
	for i, r := range v.regs {
		parts[i] = fmt.Sprintf("r%d", r)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

type builder struct {
	name     string
	sig      ir.Signature
	init     []uint64
	params   []*value
	result   *value
	body     []step
	steps    *[]step
	listing  strings.Builder
	depth    int
	finished bool
}

func (b *builder) Signature() ir.Signature { return b.sig }

func (b *builder) listf(format string, args ...any) {
	b.listing.WriteString(strings.Repeat("  ", b.depth))
	fmt.Fprintf(&b.listing, format, args...)
	b.listing.WriteByte('\n')
}

func (b *builder) emit(s step) {
	*b.steps = append(*b.steps, s)
}

// nested collects the steps emitted by fn into a separate sequence.
func (b *builder) nested(fn func() error) ([]step, error) {
	saved := b.steps
	var steps []step
	b.steps = &steps
	b.depth++
	err := fn()
	b.depth--
	b.steps = saved
	return steps, err
}

func (b *builder) alloc(t ir.Type) *value {
	n := 1
	if t.Tag == ir.TagArray {
		n = t.Len
	}
	v := &value{typ: t, regs: make([]int, n)}
	for i := range v.regs {
		v.regs[i] = len(b.init)
		b.init = append(b.init, 0)
	}
	return v
}

func (b *builder) handle(v backend.Value) (*value, error) {
	if b.finished {
		return nil, fmt.Errorf("closure: builder for %s is finished", b.name)
	}
	cv, ok := v.(*value)
	if !ok || cv == nil {
		return nil, fmt.Errorf("closure: foreign value %T", v)
	}
	return cv, nil
}

func (b *builder) Param(i int) (backend.Value, error) {
	if i < 0 || i >= len(b.params) {
		return nil, fmt.Errorf("closure: parameter %d out of range (arity %d)", i, len(b.params))
	}
	return b.params[i], nil
}

func (b *builder) Constant(c ir.Value) (backend.Value, error) {
	t, err := ir.TypeOf(c)
	if err != nil {
		return nil, err
	}
	v := b.alloc(t)
	if arr, ok := c.(ir.Array); ok {
		for i, e := range arr {
			b.init[v.regs[i]] = encode(e)
		}
	} else {
		b.init[v.regs[0]] = encode(c)
	}
	b.listf("%s = const %s %s", v, t, c)
	return v, nil
}

func (b *builder) Local(t ir.Type) (backend.Value, error) {
	if t.Tag == ir.TagInvalid {
		return nil, fmt.Errorf("closure: local of invalid type")
	}
	v := b.alloc(t)
	b.listf("%s = local %s", v, t)
	return v, nil
}

func (b *builder) Store(dst, src backend.Value) error {
	d, err := b.handle(dst)
	if err != nil {
		return err
	}
	s, err := b.handle(src)
	if err != nil {
		return err
	}
	if !backend.Assignable(d.typ, s.typ) {
		return fmt.Errorf("closure: cannot store %s into %s", s.typ, d.typ)
	}
	b.listf("store %s, %s", d, s)
	b.store(d, s)
	return nil
}

func (b *builder) store(d, s *value) {
	for i := range d.regs {
		dr, sr := d.regs[i], s.regs[i]
		dt, st := d.typ, s.typ
		if dt.Tag == ir.TagArray {
			dt, st = dt.ElemType(), st.ElemType()
		}
		if dt.Tag == ir.TagDouble && st.Tag == ir.TagInt {
			b.emit(func(fr []uint64) (bool, error) {
				fr[dr] = math.Float64bits(float64(int64(fr[sr])))
				return false, nil
			})
			continue
		}
		if dt.Tag == ir.TagInt && st.Tag == ir.TagDouble {
			b.emit(func(fr []uint64) (bool, error) {
				f := math.Float64frombits(fr[sr])
				if math.IsNaN(f) || f < math.MinInt64 || f >= -math.MinInt64 {
					return false, fmt.Errorf("%w: %v", backend.ErrIntegerRange, f)
				}
				fr[dr] = uint64(int64(f))
				return false, nil
			})
			continue
		}
		b.emit(func(fr []uint64) (bool, error) {
			fr[dr] = fr[sr]
			return false, nil
		})
	}
}

// convert returns v as type t, emitting an INT to DOUBLE conversion if
// needed.
func (b *builder) convert(v *value, t ir.Type) *value {
	if v.typ == t {
		return v
	}
	tmp := b.alloc(t)
	b.listf("%s = sitofp %s", tmp, v)
	b.store(tmp, v)
	return tmp
}

func (b *builder) Binary(op backend.Op, x, y backend.Value) (backend.Value, error) {
	xv, err := b.handle(x)
	if err != nil {
		return nil, err
	}
	yv, err := b.handle(y)
	if err != nil {
		return nil, err
	}
	operand, result, err := backend.OperandType(op, xv.typ, yv.typ)
	if err != nil {
		return nil, err
	}
	xv, yv = b.convert(xv, operand), b.convert(yv, operand)
	dst := b.alloc(result)
	b.listf("%s = %s.%s %s, %s", dst, op, operand, xv, yv)

	a, c, d := xv.regs[0], yv.regs[0], dst.regs[0]
	switch operand.Tag {
	case ir.TagInt:
		fn := intOp(op)
		b.emit(func(fr []uint64) (bool, error) {
			r, err := fn(int64(fr[a]), int64(fr[c]))
			fr[d] = r
			return false, err
		})
	case ir.TagDouble:
		fn := floatOp(op)
		b.emit(func(fr []uint64) (bool, error) {
			fr[d] = fn(math.Float64frombits(fr[a]), math.Float64frombits(fr[c]))
			return false, nil
		})
	default:
		b.emit(func(fr []uint64) (bool, error) {
			fr[d] = boolBits(fr[a] == fr[c])
			return false, nil
		})
	}
	return dst, nil
}

func (b *builder) Tuple(elems []backend.Value) (backend.Value, error) {
	vals := make([]*value, len(elems))
	types := make([]ir.Type, len(elems))
	for i, e := range elems {
		v, err := b.handle(e)
		if err != nil {
			return nil, err
		}
		vals[i], types[i] = v, v.typ
	}
	t, err := backend.TupleType(types)
	if err != nil {
		return nil, err
	}
	dst := b.alloc(t)
	b.listf("%s = tuple %s", dst, t)
	for i, v := range vals {
		b.store(&value{typ: t.ElemType(), regs: dst.regs[i : i+1]}, v)
	}
	return dst, nil
}

// truth returns the register holding the condition, or -1 if the
// condition is a number and therefore always true.
func truth(v *value) int {
	if v.typ.Tag == ir.TagBool {
		return v.regs[0]
	}
	return -1
}

func (b *builder) If(cond backend.Value, then func() error) error {
	cv, err := b.handle(cond)
	if err != nil {
		return err
	}
	b.listf("if %s {", cv)
	steps, err := b.nested(then)
	if err != nil {
		return err
	}
	b.listf("}")
	c := truth(cv)
	b.emit(func(fr []uint64) (bool, error) {
		if c >= 0 && fr[c] == 0 {
			return false, nil
		}
		return run(steps, fr)
	})
	return nil
}

func (b *builder) While(cond func() (backend.Value, error), body func() error) error {
	b.listf("while {")
	var cv *value
	condSteps, err := b.nested(func() error {
		v, err := cond()
		if err != nil {
			return err
		}
		cv, err = b.handle(v)
		return err
	})
	if err != nil {
		return err
	}
	b.listf("} %s do {", cv)
	bodySteps, err := b.nested(body)
	if err != nil {
		return err
	}
	b.listf("}")
	c := truth(cv)
	b.emit(func(fr []uint64) (bool, error) {
		for {
			if done, err := run(condSteps, fr); done || err != nil {
				return done, err
			}
			if c >= 0 && fr[c] == 0 {
				return false, nil
			}
			if done, err := run(bodySteps, fr); done || err != nil {
				return done, err
			}
		}
	})
	return nil
}

func (b *builder) Return(v backend.Value) error {
	rv, err := b.handle(v)
	if err != nil {
		return err
	}
	if !backend.Assignable(b.result.typ, rv.typ) {
		return fmt.Errorf("closure: cannot return %s from %s", rv.typ, b.sig)
	}
	b.listf("ret %s", rv)
	b.store(b.result, rv)
	b.emit(func([]uint64) (bool, error) { return true, nil })
	return nil
}

func (b *builder) Finish() (backend.Artifact, error) {
	if b.finished {
		return nil, fmt.Errorf("closure: builder for %s is finished", b.name)
	}
	b.finished = true
	size := len(b.init)
	a := &Artifact{
		name:    b.name,
		sig:     b.sig,
		steps:   b.body,
		init:    b.init,
		params:  b.params,
		result:  b.result,
		listing: b.listing.String(),
	}
	a.frames.New = func() any {
		fr := make([]uint64, size)
		return &fr
	}
	return a, nil
}

// Artifact is an executable closure function. Apply is safe for
// concurrent use: every call runs on its own frame.
type Artifact struct {
	name    string
	sig     ir.Signature
	steps   []step
	init    []uint64
	params  []*value
	result  *value
	listing string
	frames  sync.Pool
}

func (a *Artifact) Signature() ir.Signature { return a.sig }

// String returns the register listing of the function.
func (a *Artifact) String() string { return a.listing }

// Apply runs the function on args. Integer division by zero returns
// backend.ErrDivisionByZero.
func (a *Artifact) Apply(args ...ir.Value) (ir.Value, error) {
	if err := backend.CheckArgs(a.sig, args); err != nil {
		return nil, err
	}
	frp := a.frames.Get().(*[]uint64)
	defer a.frames.Put(frp)
	fr := *frp
	copy(fr, a.init)
	for i, p := range a.params {
		fr[p.regs[0]] = encode(args[i])
	}
	if _, err := run(a.steps, fr); err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	return decode(a.result, fr), nil
}

func encode(v ir.Value) uint64 {
	switch x := v.(type) {
	case ir.Int:
		return uint64(x)
	case ir.Double:
		return math.Float64bits(float64(x))
	case ir.Bool:
		return boolBits(bool(x))
	}
	return 0
}

func decodeScalar(tag ir.Tag, bits uint64) ir.Value {
	switch tag {
	case ir.TagInt:
		return ir.Int(int64(bits))
	case ir.TagDouble:
		return ir.Double(math.Float64frombits(bits))
	case ir.TagBool:
		return ir.Bool(bits != 0)
	}
	return ir.Nil{}
}

func decode(v *value, fr []uint64) ir.Value {
	if v.typ.Tag != ir.TagArray {
		return decodeScalar(v.typ.Tag, fr[v.regs[0]])
	}
	arr := make(ir.Array, len(v.regs))
	for i, r := range v.regs {
		arr[i] = decodeScalar(v.typ.Elem, fr[r])
	}
	return arr
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
