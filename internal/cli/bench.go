package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/engine"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/ir"
)

// BenchOptions holds flags for the bench command.
type BenchOptions struct {
	*RootOptions
	Iterations int
}

// BenchResult compares interpreted and optimized calls of one function.
type BenchResult struct {
	Function      string  `json:"function"`
	Iterations    int     `json:"iterations"`
	State         string  `json:"state"`
	Result        string  `json:"result"`
	InterpretedNs int64   `json:"interpreted_ns_per_op"`
	OptimizedNs   int64   `json:"optimized_ns_per_op"`
	Speedup       float64 `json:"speedup"`
}

// NewBenchCommand creates the bench command.
func NewBenchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BenchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bench <dir> <func> [args...]",
		Short: "Time interpreted against optimized calls",
		Long: `Call a function -n times under the interpreter, then -n times through
the optimizer, and report the time per call of each.

The witness call is made before timing starts. If the call site does not
compile, the optimized column times the interpreted fallback.

Examples:
  skip bench ./funcs stride 2 9999
  skip bench ./funcs triangle 200 -n 10000`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 1000, "calls per measurement")

	return cmd
}

func runBench(opts *BenchOptions, dir, name string, rawArgs []string, cmd *cobra.Command) error {
	if opts.Iterations < 1 {
		return NewExitError(ExitCommandError, "-n must be at least 1")
	}
	args, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}
	_, fn, err := loadFunction(dir, name, opts.interpOptions()...)
	if err != nil {
		return err
	}
	opt, err := opts.newOptimizer()
	if err != nil {
		return err
	}
	c, err := opt.Optimize(fn)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to optimize", err)
	}

	want, err := c.Call(args...)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", name), err)
	}

	interpreted, err := timeCalls(fn, args, opts.Iterations)
	if err != nil {
		return WrapExitError(ExitFailure, "interpreted call failed", err)
	}
	optimized, err := timeCalls(c, args, opts.Iterations)
	if err != nil {
		return WrapExitError(ExitFailure, "optimized call failed", err)
	}

	result := BenchResult{
		Function:      name,
		Iterations:    opts.Iterations,
		State:         engine.StateUncompiled.String(),
		Result:        want.String(),
		InterpretedNs: interpreted.Nanoseconds() / int64(opts.Iterations),
		OptimizedNs:   optimized.Nanoseconds() / int64(opts.Iterations),
	}
	if tr, ok := c.(*engine.Trampoline); ok {
		result.State = tr.State().String()
	}
	if optimized > 0 {
		result.Speedup = float64(interpreted) / float64(optimized)
	}

	return opts.formatter(cmd).Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s = %s (%s)\n", name, result.Result, result.State)
		fmt.Fprintf(w, "  iterations:  %s\n", humanize.Comma(int64(result.Iterations)))
		fmt.Fprintf(w, "  interpreted: %s ns/op\n", humanize.Comma(result.InterpretedNs))
		fmt.Fprintf(w, "  optimized:   %s ns/op\n", humanize.Comma(result.OptimizedNs))
		fmt.Fprintf(w, "  speedup:     %sx\n", humanize.FtoaWithDigits(result.Speedup, 2))
	})
}

// timeCalls returns the wall time of n calls of fn.
func timeCalls(fn host.Callable, args []ir.Value, n int) (time.Duration, error) {
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := fn.Call(args...); err != nil {
			return 0, err
		}
	}
	return time.Since(start), nil
}
