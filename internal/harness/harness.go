package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/backend"
	"github.com/syntheticore/skip/internal/backend/closure"
	"github.com/syntheticore/skip/internal/compiler"
	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/interp"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/loader"
	"github.com/syntheticore/skip/internal/store"

	_ "github.com/syntheticore/skip/internal/backend/llvm"
)

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and call site tokens.
type Harness struct {
	store  *store.Store
	clock  *engine.Clock
	fn     host.Callable
	tree   *ast.Node
	tr     *engine.Trampoline
	logger *zap.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Load the function from the scenario's CUE source
// 2. Optimize it with the scenario's options
// 3. Make every call, recording path, state and outcome
// 4. Merge the journal into the trace
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with optimizer logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	defs, errs := loader.Load(scenario.Source, loader.LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load %s: %w", scenario.Source, loader.Combine(errs))
	}
	fn, err := defs.NewFunction(scenario.Function)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", scenario.Function, err)
	}

	opts, err := optimizerOptions(scenario.Options)
	if err != nil {
		return nil, err
	}
	clock := engine.NewClock()
	opts = append(opts,
		engine.WithLogger(logger),
		engine.WithJournal(st),
		engine.WithClock(clock),
		engine.WithTokenGenerator(engine.NewSequenceGenerator(scenario.TokenPrefix)),
	)

	c, err := engine.New(opts...).Optimize(fn)
	if err != nil {
		return nil, fmt.Errorf("failed to optimize %s: %w", scenario.Function, err)
	}

	h := &Harness{
		store:  st,
		clock:  clock,
		fn:     c,
		tree:   fn.Source(),
		logger: logger,
	}
	h.tr, _ = c.(*engine.Trampoline)

	result := NewResult()
	calls, err := h.executeCalls(ctx, scenario.Calls, result)
	if err != nil {
		return nil, fmt.Errorf("failed to execute calls: %w", err)
	}
	journal, err := h.readJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	result.Trace = append(calls, journal...)
	sort.SliceStable(result.Trace, func(i, j int) bool {
		return result.Trace[i].Seq < result.Trace[j].Seq
	})
	for _, e := range journal {
		if e.Type == EventCompilation {
			result.Compilations++
		}
	}

	result.State = engine.StateUncompiled.String()
	if h.tr != nil {
		result.State = h.tr.State().String()
		if e := h.tr.Entry(); e != nil {
			result.Stats = e.Stats()
			if art := e.Artifact(); art != nil {
				result.Listing = art.String()
			}
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func optimizerOptions(o Options) ([]engine.Option, error) {
	var be backend.Backend
	switch o.Backend {
	case "":
		be = closure.New()
	case BackendUnavailable:
		be = backend.Unavailable("disabled by scenario")
	default:
		var err error
		if be, err = backend.Lookup(o.Backend); err != nil {
			return nil, err
		}
	}
	policy, err := compiler.ParsePolicy(o.Policy)
	if err != nil {
		return nil, err
	}
	validate := true
	if o.Validate != nil {
		validate = *o.Validate
	}
	return []engine.Option{
		engine.WithBackend(be),
		engine.WithPolicy(policy),
		engine.WithValidation(validate),
	}, nil
}

// executeCalls makes every call and validates its expectation.
// Each call is stamped from the journal clock so calls and journal
// records interleave in the order they happened.
func (h *Harness) executeCalls(ctx context.Context, steps []CallStep, result *Result) ([]TraceEvent, error) {
	events := make([]TraceEvent, 0, len(steps))
	for i, step := range steps {
		args, err := convertArgs(step.Args)
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}

		before := h.stats()
		got, callErr := h.fn.Call(args...)
		ev := TraceEvent{
			Type: EventCall,
			Seq:  h.clock.Next(),
			Args: args,
			Path: h.path(before),
		}
		if h.tr != nil {
			ev.Token = h.tr.Token()
			ev.State = h.tr.State().String()
		}
		if callErr != nil {
			ev.Error = callErr.Error()
		} else {
			ev.Result = got
		}
		events = append(events, ev)

		// Interpreted reference value for matches_interpreted.
		want, err := interp.Call(ctx, h.tree, args)
		if err != nil {
			want = nil
		}
		result.Interpreted = append(result.Interpreted, want)

		if msg := checkCall(i, step, got, callErr); msg != "" {
			result.AddError(msg)
		}
		h.logger.Debug("scenario call",
			zap.Int("step", i),
			zap.String("path", ev.Path),
			zap.String("state", ev.State))
	}
	return events, nil
}

func (h *Harness) stats() engine.Stats {
	if h.tr == nil {
		return engine.Stats{}
	}
	if e := h.tr.Entry(); e != nil {
		return e.Stats()
	}
	return engine.Stats{}
}

// path reports how the last call was dispatched.
func (h *Harness) path(before engine.Stats) string {
	if h.tr == nil {
		return PathPassThrough
	}
	after := h.stats()
	switch {
	case after.WitnessRuns > before.WitnessRuns:
		return PathWitness
	case after.Native > before.Native:
		return PathNative
	case after.Interpreted > before.Interpreted:
		return PathInterpreted
	}
	return PathNone
}

// readJournal converts the journal timeline into trace events.
func (h *Harness) readJournal(ctx context.Context) ([]TraceEvent, error) {
	timeline, err := h.store.Timeline(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	events := make([]TraceEvent, 0, len(timeline))
	for _, e := range timeline {
		switch e.Type {
		case store.EventCallSite:
			events = append(events, TraceEvent{
				Type:  EventCallSite,
				Seq:   e.Seq,
				Token: e.Token(),
			})
		case store.EventCompilation:
			c := e.Compilation
			events = append(events, TraceEvent{
				Type:        EventCompilation,
				Seq:         e.Seq,
				Token:       c.Token,
				Args:        c.WitnessArgs,
				Result:      c.WitnessValue,
				State:       c.State,
				Signature:   c.Signature,
				Diagnostics: c.Diagnostics,
				Error:       c.Error,
			})
		}
	}
	return events, nil
}

func checkCall(i int, step CallStep, got ir.Value, err error) string {
	switch {
	case step.Error != "":
		if err == nil {
			return fmt.Sprintf("calls[%d]: expected error containing %q, got %s", i, step.Error, got)
		}
		if !strings.Contains(err.Error(), step.Error) {
			return fmt.Sprintf("calls[%d]: expected error containing %q, got %q", i, step.Error, err.Error())
		}
	case err != nil:
		return fmt.Sprintf("calls[%d]: unexpected error: %v", i, err)
	case step.Expect != nil:
		want, convErr := ir.FromAny(step.Expect)
		if convErr != nil {
			return fmt.Sprintf("calls[%d]: expect: %v", i, convErr)
		}
		if !ir.Equal(want, got) {
			return fmt.Sprintf("calls[%d]: expected %s, got %s", i, want, got)
		}
	}
	return ""
}

// convertArgs converts YAML-decoded arguments to values.
func convertArgs(raw []any) ([]ir.Value, error) {
	args := make([]ir.Value, len(raw))
	for i, a := range raw {
		v, err := ir.FromAny(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
