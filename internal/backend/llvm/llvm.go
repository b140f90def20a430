// Package llvm emits LLVM IR for lowered functions using
// github.com/llir/llvm. It is an inspection backend: modules can be printed
// and fed to llc, but artifacts cannot be applied in-process.
//
// Type mapping: INT is i64, DOUBLE is double, BOOL is i1 and a
// literal-sized array is [N x T]. Every binding lives in an alloca slot of
// the entry block; control flow uses named basic blocks.
package llvm

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/ir"
)

// Name is the registry name of this backend.
const Name = "llvm"

func init() {
	backend.Register(New())
}

// Backend emits one LLVM module per function.
type Backend struct{}

// New creates the backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return Name }

// Available always reports ErrUnavailable: the emitted IR is not executed
// in-process.
func (*Backend) Available() error {
	return fmt.Errorf("%w: llvm backend only emits IR", backend.ErrUnavailable)
}

func (*Backend) NewFunction(name string, sig ir.Signature) (backend.Builder, error) {
	if err := backend.CheckSignature(sig); err != nil {
		return nil, err
	}
	m := llir.NewModule()
	params := make([]*llir.Param, sig.Arity())
	for i, p := range sig.Params() {
		params[i] = llir.NewParam(fmt.Sprintf("p%d", i), llType(p))
	}
	f := m.NewFunc(name, llType(sig.Result()), params...)
	b := &builder{name: name, sig: sig, module: m, fn: f}
	b.entry = f.NewBlock("entry")
	b.cur = b.entry
	for i, p := range params {
		slot := b.entry.NewAlloca(p.Typ)
		b.entry.NewStore(p, slot)
		b.params = append(b.params, &val{typ: sig.Param(i), slot: slot})
	}
	return b, nil
}

func llType(t ir.Type) types.Type {
	switch t.Tag {
	case ir.TagInt:
		return types.I64
	case ir.TagDouble:
		return types.Double
	case ir.TagBool:
		return types.I1
	case ir.TagArray:
		return types.NewArray(uint64(t.Len), llType(t.ElemType()))
	}
	return types.Void
}

// val is either an SSA value or an assignable alloca slot.
type val struct {
	typ  ir.Type
	v    value.Value
	slot *llir.InstAlloca
}

func (v *val) Type() ir.Type { return v.typ }

type builder struct {
	name     string
	sig      ir.Signature
	module   *llir.Module
	fn       *llir.Func
	entry    *llir.Block
	cur      *llir.Block
	params   []*val
	trap     *llir.Func
	blocks   int
	finished bool
}

func (b *builder) Signature() ir.Signature { return b.sig }

func (b *builder) newBlock(kind string) *llir.Block {
	b.blocks++
	return b.fn.NewBlock(fmt.Sprintf("%s.%d", kind, b.blocks))
}

func (b *builder) handle(v backend.Value) (*val, error) {
	if b.finished {
		return nil, fmt.Errorf("llvm: builder for %s is finished", b.name)
	}
	lv, ok := v.(*val)
	if !ok || lv == nil {
		return nil, fmt.Errorf("llvm: foreign value %T", v)
	}
	return lv, nil
}

func (b *builder) load(v *val) value.Value {
	if v.slot != nil {
		return b.cur.NewLoad(llType(v.typ), v.slot)
	}
	return v.v
}

// convert loads v as a scalar of type t.
func (b *builder) convert(v *val, t ir.Type) value.Value {
	x := b.load(v)
	switch {
	case v.typ.Tag == ir.TagInt && t.Tag == ir.TagDouble:
		return b.cur.NewSIToFP(x, types.Double)
	case v.typ.Tag == ir.TagDouble && t.Tag == ir.TagInt:
		return b.cur.NewFPToSI(x, types.I64)
	}
	return x
}

func (b *builder) Param(i int) (backend.Value, error) {
	if i < 0 || i >= len(b.params) {
		return nil, fmt.Errorf("llvm: parameter %d out of range (arity %d)", i, len(b.params))
	}
	return b.params[i], nil
}

func constantOf(v ir.Value) (constant.Constant, error) {
	switch x := v.(type) {
	case ir.Int:
		return constant.NewInt(types.I64, int64(x)), nil
	case ir.Double:
		return constant.NewFloat(types.Double, float64(x)), nil
	case ir.Bool:
		return constant.NewBool(bool(x)), nil
	}
	return nil, fmt.Errorf("llvm: no constant for %s", v)
}

func zeroOf(t ir.Type) constant.Constant {
	if t.Tag == ir.TagArray {
		return constant.NewZeroInitializer(llType(t))
	}
	c, _ := constantOf(ir.Zero(t))
	return c
}

func (b *builder) Constant(c ir.Value) (backend.Value, error) {
	t, err := ir.TypeOf(c)
	if err != nil {
		return nil, err
	}
	if arr, ok := c.(ir.Array); ok {
		elems := make([]constant.Constant, len(arr))
		for i, e := range arr {
			if elems[i], err = constantOf(e); err != nil {
				return nil, err
			}
		}
		return &val{typ: t, v: constant.NewArray(llType(t).(*types.ArrayType), elems...)}, nil
	}
	k, err := constantOf(c)
	if err != nil {
		return nil, err
	}
	return &val{typ: t, v: k}, nil
}

func (b *builder) Local(t ir.Type) (backend.Value, error) {
	if t.Tag == ir.TagInvalid {
		return nil, fmt.Errorf("llvm: local of invalid type")
	}
	slot := b.entry.NewAlloca(llType(t))
	b.entry.NewStore(zeroOf(t), slot)
	return &val{typ: t, slot: slot}, nil
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
	if d.slot == nil {
		return fmt.Errorf("llvm: store into a non-assignable value")
	}
	if !backend.Assignable(d.typ, s.typ) || (d.typ.Tag == ir.TagArray && d.typ != s.typ) {
		return fmt.Errorf("llvm: cannot store %s into %s", s.typ, d.typ)
	}
	b.cur.NewStore(b.convert(s, d.typ), d.slot)
	return nil
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
	l, r := b.convert(xv, operand), b.convert(yv, operand)
	var out value.Value
	switch operand.Tag {
	case ir.TagInt:
		out = b.intOp(op, l, r)
	case ir.TagDouble:
		out = b.floatOp(op, l, r)
	default:
		out = b.cur.NewICmp(enum.IPredEQ, l, r)
	}
	return &val{typ: result, v: out}, nil
}

var intPreds = map[backend.Op]enum.IPred{
	backend.OpLT: enum.IPredSLT,
	backend.OpGT: enum.IPredSGT,
	backend.OpLE: enum.IPredSLE,
	backend.OpGE: enum.IPredSGE,
	backend.OpEQ: enum.IPredEQ,
}

var floatPreds = map[backend.Op]enum.FPred{
	backend.OpLT: enum.FPredOLT,
	backend.OpGT: enum.FPredOGT,
	backend.OpLE: enum.FPredOLE,
	backend.OpGE: enum.FPredOGE,
	backend.OpEQ: enum.FPredOEQ,
}

func (b *builder) intOp(op backend.Op, x, y value.Value) value.Value {
	switch op {
	case backend.OpAdd:
		return b.cur.NewAdd(x, y)
	case backend.OpSub:
		return b.cur.NewSub(x, y)
	case backend.OpMul:
		return b.cur.NewMul(x, y)
	case backend.OpDiv, backend.OpRem:
		return b.flooredDiv(x, y, op == backend.OpRem)
	}
	return b.cur.NewICmp(intPreds[op], x, y)
}

// flooredDiv emits division rounding toward negative infinity, trapping on
// a zero divisor.
func (b *builder) flooredDiv(x, y value.Value, rem bool) value.Value {
	zero := constant.NewInt(types.I64, 0)
	b.trapIf(b.cur.NewICmp(enum.IPredEQ, y, zero))

	r := b.cur.NewSRem(x, y)
	nonZero := b.cur.NewICmp(enum.IPredNE, r, zero)
	signsDiffer := b.cur.NewICmp(enum.IPredSLT, b.cur.NewXor(r, y), zero)
	adjust := b.cur.NewAnd(nonZero, signsDiffer)
	if rem {
		return b.cur.NewSelect(adjust, b.cur.NewAdd(r, y), r)
	}
	q := b.cur.NewSDiv(x, y)
	return b.cur.NewSub(q, b.cur.NewZExt(adjust, types.I64))
}

func (b *builder) trapIf(cond value.Value) {
	if b.trap == nil {
		b.trap = b.module.NewFunc("llvm.trap", types.Void)
	}
	trap := b.newBlock("div.zero")
	cont := b.newBlock("div.ok")
	b.cur.NewCondBr(cond, trap, cont)
	trap.NewCall(b.trap)
	trap.NewUnreachable()
	b.cur = cont
}

func (b *builder) floatOp(op backend.Op, x, y value.Value) value.Value {
	switch op {
	case backend.OpAdd:
		return b.cur.NewFAdd(x, y)
	case backend.OpSub:
		return b.cur.NewFSub(x, y)
	case backend.OpMul:
		return b.cur.NewFMul(x, y)
	case backend.OpDiv:
		return b.cur.NewFDiv(x, y)
	case backend.OpRem:
		zero := constant.NewFloat(types.Double, 0)
		r := b.cur.NewFRem(x, y)
		nonZero := b.cur.NewFCmp(enum.FPredONE, r, zero)
		signsDiffer := b.cur.NewXor(
			b.cur.NewFCmp(enum.FPredOLT, r, zero),
			b.cur.NewFCmp(enum.FPredOLT, y, zero),
		)
		adjust := b.cur.NewAnd(nonZero, signsDiffer)
		return b.cur.NewSelect(adjust, b.cur.NewFAdd(r, y), r)
	}
	return b.cur.NewFCmp(floatPreds[op], x, y)
}

func (b *builder) Tuple(elems []backend.Value) (backend.Value, error) {
	vals := make([]*val, len(elems))
	ts := make([]ir.Type, len(elems))
	for i, e := range elems {
		v, err := b.handle(e)
		if err != nil {
			return nil, err
		}
		vals[i], ts[i] = v, v.typ
	}
	t, err := backend.TupleType(ts)
	if err != nil {
		return nil, err
	}
	var agg value.Value = constant.NewZeroInitializer(llType(t))
	for i, v := range vals {
		agg = b.cur.NewInsertValue(agg, b.convert(v, t.ElemType()), uint64(i))
	}
	return &val{typ: t, v: agg}, nil
}

func (b *builder) truth(v *val) value.Value {
	if v.typ.Tag == ir.TagBool {
		return b.load(v)
	}
	return constant.True
}

func (b *builder) If(cond backend.Value, then func() error) error {
	cv, err := b.handle(cond)
	if err != nil {
		return err
	}
	thenBlk, end := b.newBlock("if.then"), b.newBlock("if.end")
	b.cur.NewCondBr(b.truth(cv), thenBlk, end)
	b.cur = thenBlk
	if err := then(); err != nil {
		return err
	}
	if b.cur.Term == nil {
		b.cur.NewBr(end)
	}
	b.cur = end
	return nil
}

func (b *builder) While(cond func() (backend.Value, error), body func() error) error {
	head, loop, exit := b.newBlock("while.cond"), b.newBlock("while.body"), b.newBlock("while.end")
	b.cur.NewBr(head)
	b.cur = head
	c, err := cond()
	if err != nil {
		return err
	}
	cv, err := b.handle(c)
	if err != nil {
		return err
	}
	b.cur.NewCondBr(b.truth(cv), loop, exit)
	b.cur = loop
	if err := body(); err != nil {
		return err
	}
	if b.cur.Term == nil {
		b.cur.NewBr(head)
	}
	b.cur = exit
	return nil
}

func (b *builder) Return(v backend.Value) error {
	rv, err := b.handle(v)
	if err != nil {
		return err
	}
	result := b.sig.Result()
	if !backend.Assignable(result, rv.typ) || (result.Tag == ir.TagArray && result != rv.typ) {
		return fmt.Errorf("llvm: cannot return %s from %s", rv.typ, b.sig)
	}
	b.cur.NewRet(b.convert(rv, result))
	b.cur = b.newBlock("dead")
	return nil
}

func (b *builder) Finish() (backend.Artifact, error) {
	if b.finished {
		return nil, fmt.Errorf("llvm: builder for %s is finished", b.name)
	}
	b.finished = true
	zero := zeroOf(b.sig.Result())
	for _, blk := range b.fn.Blocks {
		if blk.Term == nil {
			blk.NewRet(zero)
		}
	}
	return &Artifact{sig: b.sig, module: b.module}, nil
}

// Artifact holds an emitted LLVM module.
type Artifact struct {
	sig    ir.Signature
	module *llir.Module
}

func (a *Artifact) Signature() ir.Signature { return a.sig }

// Apply always fails with backend.ErrNotExecutable.
func (a *Artifact) Apply(...ir.Value) (ir.Value, error) {
	return nil, backend.ErrNotExecutable
}

// String returns the module in LLVM assembly.
func (a *Artifact) String() string { return a.module.String() }
