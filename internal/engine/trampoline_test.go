package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/backend/llvm"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/interp"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/store"
	"github.com/syntheticore/skip/internal/testutil"
	"github.com/syntheticore/skip/internal/witness"
)

func trampoline(t *testing.T, o *Optimizer, tree *ast.Node) *Trampoline {
	t.Helper()
	c, err := o.Optimize(testutil.Function(tree))
	require.NoError(t, err)
	tr, ok := c.(*Trampoline)
	require.True(t, ok, "expected a trampoline, got %T", c)
	return tr
}

func call(t *testing.T, c host.Callable, args ...ir.Value) ir.Value {
	t.Helper()
	v, err := c.Call(args...)
	require.NoError(t, err)
	return v
}

func interpreted(t *testing.T, tree *ast.Node, args ...ir.Value) ir.Value {
	t.Helper()
	v, err := interp.Call(context.Background(), tree, args)
	require.NoError(t, err)
	return v
}

// ============================================================================
// Dispatch
// ============================================================================

func TestTrampoline_Idempotent(t *testing.T) {
	tr := trampoline(t, New(), testutil.Stride())
	want := interpreted(t, testutil.Stride(), testutil.Ints(2, 9999)...)

	for i := 0; i < 3; i++ {
		assert.Equal(t, want, call(t, tr, testutil.Ints(2, 9999)...), "call %d", i)
	}
	assert.Equal(t, StateCompiled, tr.State())
}

func TestTrampoline_SingleCompilation(t *testing.T) {
	o := New()
	tr := trampoline(t, o, testutil.Stride())

	for i := int64(0); i < 50; i++ {
		call(t, tr, ir.Int(i), ir.Int(100))
	}
	stats := tr.Entry().Stats()
	assert.Equal(t, 1, stats.WitnessRuns)
	assert.Equal(t, 49, stats.Native)
	assert.Equal(t, 0, stats.Interpreted)

	assert.Equal(t, 1.0, promtest.ToFloat64(o.Metrics().WitnessRuns))
	assert.Equal(t, 1.0, promtest.ToFloat64(o.Metrics().Compiles.WithLabelValues(LabelCompiled)))
	assert.Equal(t, 49.0, promtest.ToFloat64(o.Metrics().Dispatch.WithLabelValues(LabelNative)))
}

func TestTrampoline_LoopBoundary(t *testing.T) {
	tree := testutil.Stride()
	tr := trampoline(t, New(), tree)

	assert.Equal(t, interpreted(t, tree, testutil.Ints(2, 9999)...), call(t, tr, testutil.Ints(2, 9999)...))
	for _, args := range [][]ir.Value{
		testutil.Ints(2, 9999),
		testutil.Ints(9999, 2),
		testutil.Ints(-100, 100),
		testutil.Ints(3, 3),
	} {
		assert.Equal(t, interpreted(t, tree, args...), call(t, tr, args...), "args %v", args)
	}
}

func TestTrampoline_Unroll(t *testing.T) {
	tr := trampoline(t, New(), testutil.Scale())
	first := call(t, tr, ir.Int(5))
	assert.True(t, ir.Equal(ir.Ints(5, 10, 15), first), "got %s", first)
	require.Equal(t, StateCompiled, tr.State())

	second := call(t, tr, ir.Int(5))
	assert.True(t, ir.Equal(ir.Ints(5, 10, 15), second), "got %s", second)
	assert.Equal(t, 3, tr.Entry().Report().Unrolled)
}

func TestTrampoline_ArityGuard(t *testing.T) {
	tr := trampoline(t, New(), testutil.Add())

	_, err := tr.Call(ir.Int(1))
	require.Error(t, err)
	assert.True(t, host.IsArityError(err))
	assert.Equal(t, StateUncompiled, tr.State(), "no compilation before the guard passes")
	assert.Nil(t, tr.Entry())

	call(t, tr, ir.Int(1), ir.Int(2))
	require.Equal(t, StateCompiled, tr.State())

	_, err = tr.Call(ir.Int(1), ir.Int(2), ir.Int(3))
	assert.True(t, host.IsArityError(err), "compiled calls are guarded too")
	assert.Equal(t, 0, tr.Entry().Stats().Native)
}

func TestTrampoline_CompiledArgumentMismatch(t *testing.T) {
	tr := trampoline(t, New(), testutil.Add())
	call(t, tr, ir.Int(1), ir.Int(2))

	_, err := tr.Call(ir.Double(1), ir.Int(2))
	assert.ErrorIs(t, err, backend.ErrArgumentMismatch)
}

// ============================================================================
// Pass-through
// ============================================================================

func TestOptimize_PassThroughWhenUnavailable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	o := New(WithBackend(backend.Unavailable("no code generator")), WithLogger(zap.New(core)))

	fn := testutil.Function(testutil.Stride())
	strideFn, err := o.Optimize(fn)
	require.NoError(t, err)
	assert.Same(t, fn, strideFn)

	other := testutil.Function(testutil.Add())
	addFn, err := o.Optimize(other)
	require.NoError(t, err)
	assert.Same(t, other, addFn)

	assert.Equal(t, 1, logs.FilterMessage("backend unavailable, functions stay interpreted").Len(), "logged once")
	assert.Equal(t, ir.Int(2499), call(t, strideFn, testutil.Ints(2, 5000)...))
	assert.Equal(t, interpreted(t, testutil.Add(), ir.Int(40), ir.Int(2)), call(t, addFn, ir.Int(40), ir.Int(2)))
	assert.Equal(t, 0.0, promtest.ToFloat64(o.Metrics().WitnessRuns))
}

func TestOptimize_PassThroughEmitOnlyBackend(t *testing.T) {
	fn := testutil.Function(testutil.Stride())
	got, err := New(WithBackend(llvm.New())).Optimize(fn)
	require.NoError(t, err)
	assert.Same(t, fn, got)
}

func TestOptimize_NoSource(t *testing.T) {
	fn := host.Func("native", 1, func(args ...ir.Value) (ir.Value, error) { return args[0], nil }, nil)
	_, err := New().Optimize(fn)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestOptimize_ArityDisagreesWithSource(t *testing.T) {
	fn := host.Func("bad", 1, func(args ...ir.Value) (ir.Value, error) { return args[0], nil }, testutil.Add())
	_, err := New().Optimize(fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares 2 parameters")
}

func TestOptimize_Trampoline(t *testing.T) {
	o := New()
	tr := trampoline(t, o, testutil.Add())
	again, err := o.Optimize(tr)
	require.NoError(t, err)
	assert.Same(t, tr, again)
}

// ============================================================================
// Terminal states
// ============================================================================

func TestTrampoline_MismatchDetected(t *testing.T) {
	o := New()
	tr := trampoline(t, o, testutil.Square())

	_, err := tr.Call(ir.Int(3))
	require.Error(t, err)
	assert.True(t, witness.IsMismatchError(err))
	assert.Equal(t, StateFailed, tr.State())

	_, again := tr.Call(ir.Int(4))
	assert.Same(t, err, again, "the stored error is returned")
	assert.Equal(t, 1, tr.Entry().Stats().WitnessRuns)
	assert.Equal(t, 1.0, promtest.ToFloat64(o.Metrics().Compiles.WithLabelValues(LabelFailed)))
}

func TestTrampoline_MismatchUndetectedWithoutValidation(t *testing.T) {
	tr := trampoline(t, New(WithValidation(false)), testutil.Square())

	assert.Equal(t, ir.Int(9), call(t, tr, ir.Int(3)), "the witness value answers the first call")
	assert.Equal(t, StateCompiled, tr.State())
	assert.NotEqual(t, ir.Int(16), call(t, tr, ir.Int(4)), "the artifact skipped the unsupported operator")
	assert.Len(t, tr.Entry().Report().Diagnostics, 1)
}

func TestTrampoline_StrictRejection(t *testing.T) {
	o := New(WithPolicy(compiler.Strict))
	tr := trampoline(t, o, testutil.Square())

	assert.Equal(t, ir.Int(9), call(t, tr, ir.Int(3)))
	assert.Equal(t, StateRejected, tr.State())
	assert.True(t, compiler.IsCompileError(tr.Entry().Err()))

	assert.Equal(t, ir.Int(16), call(t, tr, ir.Int(4)))
	assert.Equal(t, ir.Int(25), call(t, tr, ir.Int(5)))
	stats := tr.Entry().Stats()
	assert.Equal(t, 1, stats.WitnessRuns)
	assert.Equal(t, 2, stats.Interpreted)
	assert.Equal(t, 1.0, promtest.ToFloat64(o.Metrics().Compiles.WithLabelValues(LabelRejected)))
}

func TestTrampoline_UntypedResultRejected(t *testing.T) {
	tree := ast.Func("maybe", []string{"x"}, ast.If(ast.Call(ast.Var("x"), ">", ast.Int(0)), ast.Int(1)))
	tr := trampoline(t, New(), tree)

	assert.Equal(t, ir.Nil{}, call(t, tr, ir.Int(-1)))
	assert.Equal(t, StateRejected, tr.State())
	assert.True(t, ir.IsUnsupportedType(tr.Entry().Err()))
	assert.Equal(t, ir.Int(1), call(t, tr, ir.Int(1)))
}

func TestTrampoline_ArrayParameterRejected(t *testing.T) {
	tr := trampoline(t, New(), testutil.Sum())

	assert.Equal(t, ir.Int(6), call(t, tr, ir.Ints(1, 2, 3)))
	assert.Equal(t, StateRejected, tr.State())
	assert.ErrorIs(t, tr.Entry().Err(), backend.ErrUnsupportedSignature)
	assert.Equal(t, ir.Int(10), call(t, tr, ir.Ints(1, 2, 3, 4)))
}

func TestTrampoline_WitnessErrorRetries(t *testing.T) {
	tree := ast.Func("div", []string{"a", "b"}, ast.Call(ast.Var("a"), "/", ast.Var("b")))
	tr := trampoline(t, New(), tree)

	_, err := tr.Call(ir.Int(1), ir.Int(0))
	assert.True(t, interp.IsDivisionByZero(err))
	assert.Equal(t, StateUncompiled, tr.State())

	assert.Equal(t, ir.Int(-4), call(t, tr, ir.Int(-7), ir.Int(2)))
	assert.Equal(t, StateCompiled, tr.State())
	assert.Equal(t, 2, tr.Entry().Stats().WitnessRuns)

	_, err = tr.Call(ir.Int(1), ir.Int(0))
	assert.ErrorIs(t, err, backend.ErrDivisionByZero)
}

func TestTrampoline_ReentrantWitness(t *testing.T) {
	// double(n) recurses through its own trampoline during the witness run.
	var tr *Trampoline
	native := host.Func("double", 1, func(args ...ir.Value) (ir.Value, error) {
		n := args[0].(ir.Int)
		if n <= 0 {
			return ir.Int(0), nil
		}
		v, err := tr.Call(n - 1)
		if err != nil {
			return nil, err
		}
		return v.(ir.Int) + 2, nil
	}, ast.Func("double", []string{"n"}, ast.Call(ast.Var("n"), "*", ast.Int(2))))

	c, err := New().Optimize(native)
	require.NoError(t, err)
	tr = c.(*Trampoline)

	assert.Equal(t, ir.Int(6), call(t, tr, ir.Int(3)))
	assert.Equal(t, StateCompiled, tr.State())
	stats := tr.Entry().Stats()
	assert.Equal(t, 1, stats.WitnessRuns)
	assert.Equal(t, 3, stats.Interpreted, "nested calls ran while COMPILING")
	assert.Equal(t, ir.Int(20), call(t, tr, ir.Int(10)))
}

// ============================================================================
// Partitions
// ============================================================================

func TestTrampoline_Partitions(t *testing.T) {
	o := New()
	tr := trampoline(t, o, testutil.Stride())
	want := interpreted(t, testutil.Stride(), testutil.Ints(2, 1000)...)

	const workers = 8
	views := make([]*Trampoline, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		views[w] = tr.With(NewCache())
		wg.Add(1)
		go func(view *Trampoline) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := view.Call(testutil.Ints(2, 1000)...)
				assert.NoError(t, err)
				assert.Equal(t, want, v)
			}
		}(views[w])
	}
	wg.Wait()

	for _, view := range views {
		assert.Equal(t, tr.Token(), view.Token())
		assert.Equal(t, StateCompiled, view.State())
		assert.Equal(t, 1, view.Entry().Stats().WitnessRuns)
	}
	assert.Equal(t, StateUncompiled, tr.State(), "the default partition is untouched")
	assert.Equal(t, float64(workers), promtest.ToFloat64(o.Metrics().WitnessRuns))
}

func TestTrampoline_PartitionSignatures(t *testing.T) {
	tr := trampoline(t, New(), testutil.Add())
	ints, doubles := tr.With(NewCache()), tr.With(NewCache())

	assert.Equal(t, ir.Int(3), call(t, ints, ir.Int(1), ir.Int(2)))
	assert.Equal(t, ir.Double(3.5), call(t, doubles, ir.Double(1.5), ir.Int(2)))
	assert.Equal(t, "(INT, INT) -> INT", ints.Entry().Signature().String())
	assert.Equal(t, "(DOUBLE, INT) -> DOUBLE", doubles.Entry().Signature().String())
}

func TestCache_Tokens(t *testing.T) {
	o := New(WithTokenGenerator(NewFixedGenerator("b", "a")))
	c := NewCache()
	trampoline(t, o, testutil.Add()).With(c).Call(ir.Int(1), ir.Int(1))
	trampoline(t, o, testutil.Add()).With(c).Call(ir.Int(1), ir.Int(1))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Tokens())
	e, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, StateCompiled, e.State())
	assert.NotNil(t, e.Artifact())
}

// ============================================================================
// Methods
// ============================================================================

func TestOptimizeMethod_Eager(t *testing.T) {
	class := host.NewClass("Bench")
	orig := testutil.Function(testutil.Stride())
	class.Define("stride", orig)

	c, err := New().OptimizeMethod(class, "stride", testutil.Ints(2, 10)...)
	require.NoError(t, err)
	tr := c.(*Trampoline)
	assert.Equal(t, StateCompiled, tr.State())

	bound, _ := class.Lookup("stride")
	assert.Same(t, orig, bound, "the class is not modified")

	class.Define("stride", tr)
	v, err := class.Call("stride", testutil.Ints(2, 5000)...)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(2499), v)
	assert.Equal(t, 1, tr.Entry().Stats().Native)
}

func TestOptimizeMethod_Lazy(t *testing.T) {
	class := host.NewClass("Bench")
	class.Define("add", testutil.Function(testutil.Add()))
	c, err := New().OptimizeMethod(class, "add")
	require.NoError(t, err)
	assert.Equal(t, StateUncompiled, c.(*Trampoline).State())
}

func TestOptimizeMethod_Undefined(t *testing.T) {
	_, err := New().OptimizeMethod(host.NewClass("Bench"), "missing")
	assert.ErrorIs(t, err, host.ErrUndefinedMethod)
}

func TestOptimizeMethod_EagerArityError(t *testing.T) {
	class := host.NewClass("Bench")
	class.Define("add", testutil.Function(testutil.Add()))
	_, err := New().OptimizeMethod(class, "add", ir.Int(1))
	assert.True(t, host.IsArityError(err))
}

// ============================================================================
// Observability
// ============================================================================

func TestOptimizer_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(WithMetrics(reg))
	call(t, trampoline(t, o, testutil.Add()), ir.Int(1), ir.Int(2))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["skip_engine_witness_runs_total"])
	assert.True(t, names["skip_engine_compiles_total"])
	assert.True(t, names["skip_engine_dispatch_total"])
	assert.True(t, names["skip_engine_compile_duration_seconds"])
}

func TestOptimizer_LogsCompilation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	o := New(WithLogger(zap.New(core)), WithTokenGenerator(NewFixedGenerator("site-1")))
	call(t, trampoline(t, o, testutil.Add()), ir.Int(1), ir.Int(2))

	entries := logs.FilterMessage("call site compiled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "add", fields["function"])
	assert.Equal(t, "site-1", fields["token"])
	assert.Equal(t, "(INT, INT) -> INT", fields["signature"])
}

func TestOptimizer_Journal(t *testing.T) {
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	o := New(WithJournal(s), WithTokenGenerator(NewFixedGenerator("site-1", "site-2")), WithClock(NewClockAt(10)))
	add := trampoline(t, o, testutil.Add())
	sq := trampoline(t, o, testutil.Square())
	call(t, add, ir.Int(1), ir.Int(2))
	_, err = sq.Call(ir.Int(3))
	require.Error(t, err)

	sites, err := s.ReadCallSites(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "site-1", sites[0].Token)
	assert.Equal(t, int64(11), sites[0].Seq)
	assert.Equal(t, "square", sites[1].Function)
	assert.NotEmpty(t, sites[1].FuncHash)

	comps, err := s.ReadAllCompilations(ctx)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "COMPILED", comps[0].State)
	assert.Equal(t, "(INT, INT) -> INT", comps[0].Signature)
	assert.Equal(t, ir.Int(3), comps[0].WitnessValue)
	assert.Equal(t, "FAILED", comps[1].State)
	assert.Contains(t, comps[1].Error, "compilation mismatch")
	require.Len(t, comps[1].Diagnostics, 1)
	assert.Contains(t, comps[1].Diagnostics[0], "E202")

	last, err := s.GetLastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(14), last)
}

type failingJournal struct{}

func (failingJournal) WriteCallSite(context.Context, store.CallSite) error {
	return errors.New("disk full")
}

func (failingJournal) WriteCompilation(context.Context, store.Compilation) (int64, error) {
	return 0, errors.New("disk full")
}

func TestOptimizer_JournalErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	o := New(WithJournal(failingJournal{}), WithLogger(zap.New(core)))
	assert.Equal(t, ir.Int(3), call(t, trampoline(t, o, testutil.Add()), ir.Int(1), ir.Int(2)))
	assert.Equal(t, 2, logs.FilterMessage("journal write failed").Len())
}
