package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/backend/closure"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/store"
)

// Journal receives call site and compilation records.
// Implemented by *store.Store.
type Journal interface {
	WriteCallSite(ctx context.Context, cs store.CallSite) error
	WriteCompilation(ctx context.Context, c store.Compilation) (int64, error)
}

// Optimizer creates trampolines that share one backend and configuration.
type Optimizer struct {
	backend  backend.Backend
	policy   compiler.Policy
	validate bool
	logger   *zap.Logger
	metrics  *Metrics
	registry prometheus.Registerer
	journal  Journal
	tokens   TokenGenerator
	clock    *Clock

	passthrough sync.Once
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithBackend sets the code generation backend.
// Default: the closure backend.
func WithBackend(b backend.Backend) Option {
	return func(o *Optimizer) {
		o.backend = b
	}
}

// WithPolicy sets the unsupported-node policy. Default: compiler.Lenient.
func WithPolicy(p compiler.Policy) Option {
	return func(o *Optimizer) {
		o.policy = p
	}
}

// WithValidation turns post-compile verification on or off.
// Default: on. With validation off, a compiled artifact that disagrees
// with the original semantics goes unnoticed.
func WithValidation(on bool) Option {
	return func(o *Optimizer) {
		o.validate = on
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) {
		o.logger = l
	}
}

// WithMetrics registers the optimizer's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Optimizer) {
		o.registry = reg
	}
}

// WithJournal records call sites and compilations.
func WithJournal(j Journal) Option {
	return func(o *Optimizer) {
		o.journal = j
	}
}

// WithTokenGenerator sets the call site token source.
// Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *Optimizer) {
		o.tokens = g
	}
}

// WithClock sets the journal clock, e.g. one resumed with NewClockAt.
func WithClock(c *Clock) Option {
	return func(o *Optimizer) {
		o.clock = c
	}
}

// New creates an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		backend:  closure.New(),
		policy:   compiler.Lenient,
		validate: true,
		logger:   zap.NewNop(),
		metrics:  NewMetrics(),
		tokens:   UUIDv7Generator{},
		clock:    NewClock(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.registry != nil {
		o.registry.MustRegister(o.metrics.PrometheusCollectors()...)
	}
	return o
}

// Backend returns the backend in use.
func (o *Optimizer) Backend() backend.Backend { return o.backend }

// Metrics returns the optimizer's collectors.
func (o *Optimizer) Metrics() *Metrics { return o.metrics }

// Optimize returns a trampoline for fn.
//
// If the backend is unavailable, fn itself is returned unmodified and
// nothing is compiled. A callable without a reflectable function tree
// is rejected with ErrNoSource. Optimizing a trampoline returns it as is.
func (o *Optimizer) Optimize(fn host.Callable) (host.Callable, error) {
	if tr, ok := fn.(*Trampoline); ok {
		return tr, nil
	}
	if err := o.backend.Available(); err != nil {
		o.passthrough.Do(func() {
			o.logger.Warn("backend unavailable, functions stay interpreted",
				zap.String("backend", o.backend.Name()),
				zap.Error(err))
		})
		return fn, nil
	}

	name := host.Name(fn)
	r, ok := fn.(host.Reflector)
	if !ok || r.Source() == nil {
		return nil, fmt.Errorf("optimize %s: %w", name, ErrNoSource)
	}
	tree := r.Source()
	if tree.Kind() != ast.KindFunc {
		return nil, fmt.Errorf("optimize %s: source is a %s node, want func", name, tree.Kind())
	}
	if tree.Arity() != fn.Arity() {
		return nil, fmt.Errorf("optimize %s: source declares %d parameters, callable takes %d", name, tree.Arity(), fn.Arity())
	}

	tr := &Trampoline{
		opt:   o,
		fn:    fn,
		tree:  tree,
		name:  name,
		arity: fn.Arity(),
		token: o.tokens.Generate(),
		cache: NewCache(),
	}
	o.logger.Debug("call site created",
		zap.String("function", name),
		zap.String("token", tr.token),
		zap.Int("arity", tr.arity))
	o.recordCallSite(tr)
	return tr, nil
}

// OptimizeMethod optimizes the method of class. With eagerArgs the
// trampoline is called once right away, compiling it for their
// signature. The class is not modified: installing the trampoline with
// class.Define is up to the caller.
func (o *Optimizer) OptimizeMethod(class *host.Class, method string, eagerArgs ...ir.Value) (host.Callable, error) {
	fn, ok := class.Lookup(method)
	if !ok {
		return nil, fmt.Errorf("optimize %s#%s: %w", class.Name(), method, host.ErrUndefinedMethod)
	}
	c, err := o.Optimize(fn)
	if err != nil {
		return nil, err
	}
	if len(eagerArgs) > 0 {
		if _, err := c.Call(eagerArgs...); err != nil {
			return nil, fmt.Errorf("optimize %s#%s: eager compile: %w", class.Name(), method, err)
		}
	}
	return c, nil
}

func (o *Optimizer) recordCallSite(tr *Trampoline) {
	if o.journal == nil {
		return
	}
	hash, err := ast.Hash(tr.tree)
	if err != nil {
		o.logger.Warn("cannot hash function tree", zap.String("function", tr.name), zap.Error(err))
	}
	cs := store.CallSite{
		Token:    tr.token,
		Function: tr.name,
		FuncHash: hash,
		Arity:    tr.arity,
		Seq:      o.clock.Next(),
	}
	if err := o.journal.WriteCallSite(context.Background(), cs); err != nil {
		o.logger.Error("journal write failed", zap.String("token", tr.token), zap.Error(err))
	}
}

func (o *Optimizer) recordCompilation(ctx context.Context, c store.Compilation) {
	if o.journal == nil {
		return
	}
	c.Seq = o.clock.Next()
	if _, err := o.journal.WriteCompilation(ctx, c); err != nil {
		o.logger.Error("journal write failed", zap.String("token", c.Token), zap.Error(err))
	}
}
