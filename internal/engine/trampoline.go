package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/store"
	"github.com/syntheticore/skip/internal/witness"
)

// Trampoline stands in for a host function. It compiles itself on the
// first call and dispatches to the artifact afterwards.
//
// Thread-safety: a Trampoline and the views returned by With share
// nothing mutable except their Cache. Calls on one Cache must not run
// concurrently; give each goroutine its own via With.
type Trampoline struct {
	opt   *Optimizer
	fn    host.Callable
	tree  *ast.Node
	name  string
	arity int
	token string
	cache *Cache
}

// Name returns the function name.
func (t *Trampoline) Name() string { return t.name }

// Arity returns the arity of the original callable.
func (t *Trampoline) Arity() int { return t.arity }

// Token returns the call site token.
func (t *Trampoline) Token() string { return t.token }

// Source returns the function tree being specialized.
func (t *Trampoline) Source() *ast.Node { return t.tree }

// Original returns the callable the trampoline stands in for.
func (t *Trampoline) Original() host.Callable { return t.fn }

// Cache returns the partition this view is bound to.
func (t *Trampoline) Cache() *Cache { return t.cache }

// With returns a view of the same call site bound to partition c.
func (t *Trampoline) With(c *Cache) *Trampoline {
	cp := *t
	cp.cache = c
	return &cp
}

// State returns the call site's state in the bound partition.
func (t *Trampoline) State() State {
	if e, ok := t.cache.Lookup(t.token); ok {
		return e.state
	}
	return StateUncompiled
}

// Entry returns the call site's entry in the bound partition, or nil
// before the first call.
func (t *Trampoline) Entry() *Entry {
	e, _ := t.cache.Lookup(t.token)
	return e
}

// Call invokes the trampoline.
func (t *Trampoline) Call(args ...ir.Value) (ir.Value, error) {
	return t.CallContext(context.Background(), args...)
}

// CallContext invokes the trampoline. ctx bounds the witness run and
// interpreted calls; compiled calls run to completion.
func (t *Trampoline) CallContext(ctx context.Context, args ...ir.Value) (ir.Value, error) {
	if err := host.CheckArity(t.name, t.arity, args); err != nil {
		return nil, err
	}

	e := t.cache.entry(t.token)
	switch e.state {
	case StateCompiled:
		e.stats.Native++
		t.opt.metrics.Dispatch.WithLabelValues(LabelNative).Inc()
		return e.artifact.Apply(args...)
	case StateFailed:
		return nil, e.err
	case StateRejected, StateCompiling:
		e.stats.Interpreted++
		t.opt.metrics.Dispatch.WithLabelValues(LabelInterpreted).Inc()
		return t.interpret(ctx, args)
	}
	return t.compile(ctx, e, args)
}

func (t *Trampoline) interpret(ctx context.Context, args []ir.Value) (ir.Value, error) {
	if fc, ok := t.fn.(interface {
		CallContext(context.Context, ...ir.Value) (ir.Value, error)
	}); ok {
		return fc.CallContext(ctx, args...)
	}
	return t.fn.Call(args...)
}

// compile runs the witness, compiles for its signature and validates.
// The witness value is the answer to this call unless the call site
// FAILED.
func (t *Trampoline) compile(ctx context.Context, e *Entry, args []ir.Value) (ir.Value, error) {
	o := t.opt
	log := o.logger.With(zap.String("function", t.name), zap.String("token", t.token))

	e.state = StateCompiling
	e.stats.WitnessRuns++
	o.metrics.WitnessRuns.Inc()
	o.metrics.Dispatch.WithLabelValues(LabelWitness).Inc()
	start := time.Now()

	res, err := witness.Run(ctx, t.fn, args)
	if res == nil {
		// The original call raised; nothing was learned.
		e.state = StateUncompiled
		return nil, err
	}

	rec := store.Compilation{
		Token:        t.token,
		WitnessArgs:  append([]ir.Value(nil), args...),
		WitnessValue: res.Value,
	}
	if err != nil {
		t.settle(ctx, log, e, StateRejected, err, time.Since(start), rec)
		return res.Value, nil
	}
	e.signature = res.Signature
	rec.Signature = res.Signature.String()

	art, report, err := compiler.Compile(t.tree, res.Signature, o.backend, compiler.Options{
		Policy:       o.policy,
		Observations: res.Observations,
		Logger:       log,
	})
	e.report = report
	if report != nil {
		for _, d := range report.Diagnostics {
			rec.Diagnostics = append(rec.Diagnostics, d.Error())
		}
	}
	switch {
	case compiler.IsCompileError(err), errors.Is(err, backend.ErrUnsupportedSignature):
		t.settle(ctx, log, e, StateRejected, err, time.Since(start), rec)
		return res.Value, nil
	case err != nil:
		t.settle(ctx, log, e, StateFailed, err, time.Since(start), rec)
		return nil, err
	}

	if o.validate {
		if err := witness.Verify(t.name, art, args, res.Value); err != nil {
			t.settle(ctx, log, e, StateFailed, err, time.Since(start), rec)
			return nil, err
		}
	}

	e.artifact = art
	t.settle(ctx, log, e, StateCompiled, nil, time.Since(start), rec)
	return res.Value, nil
}

// settle moves e into a terminal state and reports it.
func (t *Trampoline) settle(ctx context.Context, log *zap.Logger, e *Entry, s State, err error, d time.Duration, rec store.Compilation) {
	o := t.opt
	e.state = s
	e.err = err

	var label string
	switch s {
	case StateCompiled:
		label = LabelCompiled
		log.Info("call site compiled",
			zap.String("signature", e.signature.String()),
			zap.Int("diagnostics", len(rec.Diagnostics)),
			zap.Duration("duration", d))
	case StateRejected:
		label = LabelRejected
		log.Warn("call site rejected, staying interpreted", zap.Error(err))
	default:
		label = LabelFailed
		log.Error("call site failed", zap.Error(err))
	}
	o.metrics.Compiles.WithLabelValues(label).Inc()
	o.metrics.CompileDuration.Observe(d.Seconds())

	rec.State = s.String()
	rec.Duration = d
	if err != nil {
		rec.Error = err.Error()
	}
	o.recordCompilation(ctx, rec)
}
