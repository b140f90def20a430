package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Repeat  int
	Journal string
}

// RunResult is the outcome of a run.
type RunResult struct {
	Function  string       `json:"function"`
	Token     string       `json:"token,omitempty"`
	Result    string       `json:"result"`
	State     string       `json:"state"`
	Signature string       `json:"signature,omitempty"`
	Stats     engine.Stats `json:"stats"`
	Calls     int          `json:"calls"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <dir> <func> [args...]",
		Short: "Call a function through the optimizer",
		Long: `Load a function from the CUE files of dir and call it through the
optimizer. The first call is the witness; later calls (--repeat) dispatch
to the compiled code if the call site compiled.

Arguments are integers (3), doubles (1.5), booleans, nil or arrays
([1, 2, 3]). Methods are named Class#method.

Examples:
  skip run ./funcs stride 2 9999
  skip run ./funcs scale '[1, 2, 3]' 5 --repeat 3
  skip run ./funcs Vec#dot 1 2 3 4 --journal ./skip.db --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFunction(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Repeat, "repeat", "n", 1, "number of calls")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (optional)")

	return cmd
}

func runFunction(opts *RunOptions, dir, name string, rawArgs []string, cmd *cobra.Command) error {
	if opts.Repeat < 1 {
		return NewExitError(ExitCommandError, "--repeat must be at least 1")
	}
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}
	_, fn, err := loadFunction(dir, name, opts.interpOptions()...)
	if err != nil {
		return err
	}

	var extra []engine.Option
	if opts.Journal != "" {
		st, err := store.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()
		last, err := st.GetLastSeq(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		extra = append(extra, engine.WithJournal(st), engine.WithClock(engine.NewClockAt(last)))
	}
	opt, err := opts.newOptimizer(extra...)
	if err != nil {
		return err
	}
	c, err := opt.Optimize(fn)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to optimize", err)
	}

	result := RunResult{Function: name, State: engine.StateUncompiled.String()}
	for i := 0; i < opts.Repeat; i++ {
		v, err := c.Call(args...)
		if err != nil {
			opts.Logger().Debug("call failed", zap.Int("call", i), zap.Error(err))
			return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", name), err)
		}
		result.Result = v.String()
		result.Calls++
	}
	describeCallSite(&result, c)

	return opts.formatter(cmd).Result(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Result)
		if opts.Verbose {
			fmt.Fprintf(w, "state: %s\n", result.State)
			if result.Signature != "" {
				fmt.Fprintf(w, "signature: %s\n", result.Signature)
			}
			fmt.Fprintf(w, "witness runs: %d, native: %d, interpreted: %d\n",
				result.Stats.WitnessRuns, result.Stats.Native, result.Stats.Interpreted)
		}
	})
}

// describeCallSite fills the call site fields of result. A pass-through
// callable has no call site and stays UNCOMPILED.
func describeCallSite(result *RunResult, c host.Callable) {
	tr, ok := c.(*engine.Trampoline)
	if !ok {
		return
	}
	result.Token = tr.Token()
	result.State = tr.State().String()
	if e := tr.Entry(); e != nil {
		result.Stats = e.Stats()
		if sig := e.Signature(); sig.Result().Tag != ir.TagInvalid {
			result.Signature = sig.String()
		}
	}
}
