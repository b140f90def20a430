package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntheticore/skip/internal/ir"
	"github.com/syntheticore/skip/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Token    string // optional - one call site only
	Function string
	State    string
	Since    int64
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq         int64    `json:"seq"`
	Type        string   `json:"type"` // "call_site" or "compilation"
	Token       string   `json:"token"`
	Function    string   `json:"function,omitempty"`
	Arity       int      `json:"arity,omitempty"`
	State       string   `json:"state,omitempty"`
	Signature   string   `json:"signature,omitempty"`
	Args        []string `json:"args,omitempty"`
	Value       string   `json:"value,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Filter   store.Filter `json:"filter"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents  int            `json:"total_events"`
	CallSites    int            `json:"call_sites"`
	Compilations int            `json:"compilations"`
	States       map[string]int `json:"states"`
	CompileTime  string         `json:"compile_time"`
	// Uncompiled counts journaled call sites whose witness call raised,
	// across the whole journal.
	Uncompiled int `json:"uncompiled"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal timeline",
		Long: `Show the call sites and compilations recorded in a journal, in the
order they happened.

The output includes:
- Timeline: call site creations and compilations ordered by seq
- Stats: how many compilations ended in each state

Filters narrow the timeline and combine with AND. --state keeps the
compilations that ended in that state and their call sites.

Examples:
  skip trace --db ./skip.db
  skip trace --db ./skip.db --token 0190a5c4-...
  skip trace --db ./skip.db --function stride --state REJECTED
  skip trace --db ./skip.db --since 120
  skip trace --db ./skip.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "show one call site only")
	cmd.Flags().StringVar(&opts.Function, "function", "", "show one function only")
	cmd.Flags().StringVar(&opts.State, "state", "", "show compilations that ended in this state")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "show events from this seq on")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.Filter{
		Token:    opts.Token,
		Function: opts.Function,
		State:    strings.ToUpper(opts.State),
		Since:    opts.Since,
	}
	events, err := st.Timeline(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	uncompiled, err := st.FindUncompiled(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Filter:   filter,
		Timeline: buildTimeline(events),
		Stats:    TraceStats{States: map[string]int{}},
	}
	var compileTime time.Duration
	for _, e := range events {
		switch e.Type {
		case store.EventCallSite:
			result.Stats.CallSites++
		case store.EventCompilation:
			result.Stats.Compilations++
			result.Stats.States[e.Compilation.State]++
			compileTime += e.Compilation.Duration
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)
	result.Stats.CompileTime = compileTime.String()
	result.Stats.Uncompiled = len(uncompiled)

	return opts.formatter(cmd).Result(result, func(w io.Writer) {
		outputTraceText(w, result, opts.Verbose)
	})
}

// openJournal opens an existing journal. A missing file is a command
// error rather than a new empty journal.
func openJournal(path string) (*store.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}

// buildTimeline converts journal events to trace timeline events.
func buildTimeline(events []store.Event) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		switch e.Type {
		case store.EventCallSite:
			cs := e.CallSite
			timeline = append(timeline, TraceEvent{
				Seq:      e.Seq,
				Type:     e.Type.String(),
				Token:    cs.Token,
				Function: cs.Function,
				Arity:    cs.Arity,
			})
		case store.EventCompilation:
			c := e.Compilation
			ev := TraceEvent{
				Seq:         e.Seq,
				Type:        e.Type.String(),
				Token:       c.Token,
				State:       c.State,
				Signature:   c.Signature,
				Args:        formatValues(c.WitnessArgs),
				Duration:    c.Duration.String(),
				Diagnostics: c.Diagnostics,
				Error:       c.Error,
			}
			if c.WitnessValue != nil {
				ev.Value = c.WitnessValue.String()
			}
			timeline = append(timeline, ev)
		}
	}
	return timeline
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events found in journal.")
		return
	}

	fmt.Fprintln(w, "=== Timeline ===")
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Call Sites:   %d\n", result.Stats.CallSites)
	fmt.Fprintf(w, "  Compilations: %d\n", result.Stats.Compilations)
	states := make([]string, 0, len(result.Stats.States))
	for s := range result.Stats.States {
		states = append(states, s)
	}
	sort.Strings(states)
	for _, s := range states {
		fmt.Fprintf(w, "    %-10s %d\n", s, result.Stats.States[s])
	}
	fmt.Fprintf(w, "  Compile Time: %s\n", result.Stats.CompileTime)
	if result.Stats.Uncompiled > 0 {
		fmt.Fprintf(w, "  Uncompiled:   %d\n", result.Stats.Uncompiled)
	}
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case "call_site":
		fmt.Fprintf(w, "  [%d] SITE %s/%d %s\n", event.Seq, event.Function, event.Arity, truncateID(event.Token))

	case "compilation":
		fmt.Fprintf(w, "  [%d] %s %s (%s) = %s\n", event.Seq, event.State, event.Signature,
			strings.Join(event.Args, ", "), event.Value)
		if event.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", event.Error)
		}
		if verbose {
			for _, d := range event.Diagnostics {
				fmt.Fprintf(w, "       Diagnostic: %s\n", d)
			}
			fmt.Fprintf(w, "       Token: %s, took %s\n", event.Token, event.Duration)
		}
	}
}

func formatValues(vs []ir.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
