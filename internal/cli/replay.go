package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/loader"
	"github.com/syntheticore/skip/internal/store"
	"github.com/syntheticore/skip/internal/witness"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Token    string // optional - one call site only
}

// ReplayCallSiteResult holds the replay result for a single call site.
type ReplayCallSiteResult struct {
	Token         string   `json:"token"`
	Function      string   `json:"function"`
	Source        string   `json:"source,omitempty"`
	Compilations  int      `json:"compilations"`
	Deterministic bool     `json:"deterministic"`
	Differences   []string `json:"differences,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	CallSites        []ReplayCallSiteResult `json:"call_sites"`
	TotalCallSites   int                    `json:"total_call_sites"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <dir>",
		Short: "Re-run journaled witness calls and verify determinism",
		Long: `Re-run every journaled witness call against the current sources of dir.

Call sites are matched to functions by the content hash of their tree,
so a call site whose function changed since it was journaled is reported
rather than replayed. For every compilation the witness is run again on
the recorded arguments and must produce the same value and signature.
With an executable backend the call site must also settle in the same
state.

Exit codes:
  0 - All call sites replay deterministically
  1 - Differences detected
  2 - Command error (journal not found, etc.)

Examples:
  skip replay --db ./skip.db ./funcs
  skip replay --db ./skip.db ./funcs --token 0190a5c4-...
  skip replay --db ./skip.db ./funcs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "replay one call site only")

	return cmd
}

func runReplay(opts *ReplayOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	defs, err := loadSource(dir)
	if err != nil {
		return err
	}
	byHash, err := indexByHash(defs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash sources", err)
	}

	var sites []store.CallSite
	if opts.Token != "" {
		cs, err := st.ReadCallSite(ctx, opts.Token)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read call site", err)
		}
		sites = []store.CallSite{cs}
	} else if sites, err = st.ReadCallSites(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read call sites", err)
	}

	result := ReplayResult{
		CallSites:        make([]ReplayCallSiteResult, 0, len(sites)),
		TotalCallSites:   len(sites),
		AllDeterministic: true,
	}
	for _, cs := range sites {
		r, err := replayCallSite(ctx, opts, st, cs, defs, byHash)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay call site %s", cs.Token), err)
		}
		result.CallSites = append(result.CallSites, r)
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	text := func(w io.Writer) {
		if len(result.CallSites) == 0 {
			fmt.Fprintln(w, "No call sites found in journal.")
			return
		}
		for _, r := range result.CallSites {
			mark := "✓"
			if !r.Deterministic {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s %s (%d compilation(s))\n", mark, r.Function, truncateID(r.Token), r.Compilations)
			for _, d := range r.Differences {
				fmt.Fprintf(w, "  %s\n", d)
			}
		}
		fmt.Fprintln(w)
		if result.AllDeterministic {
			fmt.Fprintf(w, "✓ All %d call site(s) deterministic\n", result.TotalCallSites)
		}
	}

	formatter := opts.formatter(cmd)
	if result.AllDeterministic {
		return formatter.Result(result, text)
	}
	msg := "replay differs from journal"
	if err := formatter.Failure("E_NONDETERMINISTIC", msg, result, text); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// indexByHash maps the content hash of every loaded tree to its name.
func indexByHash(defs *loader.Result) (map[string]string, error) {
	byHash := make(map[string]string)
	for _, name := range defs.Names() {
		tree, _ := defs.Function(name)
		h, err := ast.Hash(tree)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		byHash[h] = name
	}
	return byHash, nil
}

func replayCallSite(ctx context.Context, opts *ReplayOptions, st *store.Store, cs store.CallSite, defs *loader.Result, byHash map[string]string) (ReplayCallSiteResult, error) {
	r := ReplayCallSiteResult{
		Token:         cs.Token,
		Function:      cs.Function,
		Deterministic: true,
	}
	comps, err := st.ReadCompilations(ctx, cs.Token)
	if err != nil {
		return r, err
	}
	r.Compilations = len(comps)

	name, ok := byHash[cs.FuncHash]
	if !ok {
		r.Deterministic = false
		r.Differences = append(r.Differences, "source changed: no function with hash "+cs.FuncHash)
		return r, nil
	}
	r.Source = name

	for _, c := range comps {
		fn, err := defs.NewFunction(name, opts.interpOptions()...)
		if err != nil {
			return r, err
		}
		for _, d := range replayCompilation(ctx, opts, fn, c) {
			r.Deterministic = false
			r.Differences = append(r.Differences, fmt.Sprintf("seq %d: %s", c.Seq, d))
		}
	}
	return r, nil
}

// replayCompilation re-runs one journaled witness call and returns how it
// differs from the record.
func replayCompilation(ctx context.Context, opts *ReplayOptions, fn *host.Function, c store.Compilation) []string {
	var diffs []string

	res, err := witness.Run(ctx, fn, c.WitnessArgs)
	if res == nil {
		return []string{fmt.Sprintf("witness raised: %v", err)}
	}
	if !ir.Equal(res.Value, c.WitnessValue) {
		diffs = append(diffs, fmt.Sprintf("value %s, journal has %s", res.Value, c.WitnessValue))
	}
	sig := ""
	if err == nil {
		sig = res.Signature.String()
	}
	if sig != c.Signature {
		diffs = append(diffs, fmt.Sprintf("signature %q, journal has %q", sig, c.Signature))
	}

	opt, err := opts.newOptimizer(engine.WithTokenGenerator(engine.NewFixedGenerator(c.Token)))
	if err != nil {
		return append(diffs, err.Error())
	}
	callable, err := opt.Optimize(fn)
	if err != nil {
		return append(diffs, err.Error())
	}
	tr, ok := callable.(*engine.Trampoline)
	if !ok {
		// Emit-only or unavailable backend: nothing to settle.
		return diffs
	}
	_, _ = tr.CallContext(ctx, c.WitnessArgs...)
	if state := tr.State().String(); state != c.State {
		diffs = append(diffs, fmt.Sprintf("state %s, journal has %s", state, c.State))
	}
	return diffs
}
