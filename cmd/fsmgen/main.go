// Command fsmgen lowers structured control programs to FSM logic and runs
// cost-based extraction over saturated e-graphs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fsmgen/internal/analysis"
	"fsmgen/internal/diag"
	"fsmgen/internal/extract"
	"fsmgen/internal/frontend"
	"fsmgen/internal/ir"
	"fsmgen/internal/passes"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fsmgen: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fsmgen",
		Short:         "fsmgen compiles structured control to finite-state-machine logic",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.AddCommand(newLowerCmd(out, errOut))
	rootCmd.AddCommand(newPlanCmd(out, errOut))
	rootCmd.AddCommand(newExtractCmd(out, errOut))
	rootCmd.AddCommand(newDumpCmd(out))
	return rootCmd
}

func loadContext(filename string) (*ir.Context, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return frontend.Load(f)
}

func newLowerCmd(out, errOut io.Writer) *cobra.Command {
	var (
		strategy   string
		promote    bool
		diagFormat string
	)
	cmd := &cobra.Command{
		Use:   "lower [file]",
		Short: "Lower a component's control tree to FSM logic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadContext(args[0])
			if err != nil {
				return err
			}
			reporter := diag.NewReporter(errOut, diagFormat)
			for _, comp := range ctx.Components {
				ir.ValidateStaticTiming(comp.Control, comp)
				if promote {
					table := analysis.BuildLatencyTable(comp)
					analysis.InferPromotion(comp, table, reporter)
				}
			}
			var pipeline []passes.Pass
			switch strategy {
			case "ref":
				pipeline = []passes.Pass{passes.NewCompileRef()}
			case "inline":
				pipeline = []passes.Pass{passes.NewStaticInliner()}
			case "fsm":
				pipeline = []passes.Pass{passes.NewCompileStatic()}
			default:
				return fmt.Errorf("unknown strategy %q, want ref, inline or fsm", strategy)
			}
			passes.Run(ctx, pipeline...)
			for _, comp := range ctx.Components {
				ir.Dump(comp, out)
			}
			if reporter.HasErrors() {
				return fmt.Errorf("lowering produced %d errors", reporter.Count())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "fsm", "Lowering strategy: ref, inline or fsm")
	cmd.Flags().BoolVar(&promote, "promote", false, "Infer group latencies and stamp promotable attributes first")
	cmd.Flags().StringVar(&diagFormat, "diag-format", "text", "Diagnostic rendering: text or json")
	return cmd
}

func newPlanCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Print FSM allocation decisions without lowering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadContext(args[0])
			if err != nil {
				return err
			}
			for _, comp := range ctx.Components {
				planner := analysis.PlanControl(comp)
				fmt.Fprintf(out, "component %s:\n", comp.Name)
				printPlans(out, comp, comp.Control, planner, 1)
			}
			return nil
		},
	}
	return cmd
}

func printPlans(w io.Writer, comp *ir.Component, c ir.Control, planner *analysis.Planner, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	fmt.Fprint(w, controlLabel(comp, c))
	if plan, ok := planner.Plan(c); ok && plan.Static {
		fmt.Fprintf(w, "  states=%d lockstep=%v", plan.States, plan.Lockstep)
		if plan.Strategy != analysis.StrategyNone {
			fmt.Fprintf(w, " strategy=%s", strategyName(plan.Strategy))
		}
	}
	fmt.Fprintln(w)
	for _, child := range controlChildren(c) {
		printPlans(w, comp, child, planner, depth+1)
	}
}

func controlLabel(comp *ir.Component, c ir.Control) string {
	switch n := c.(type) {
	case *ir.Seq:
		return "seq"
	case *ir.Par:
		return "par"
	case *ir.If:
		return "if"
	case *ir.While:
		return "while"
	case *ir.Repeat:
		return fmt.Sprintf("repeat %d", n.NumRepeats)
	case *ir.Enable:
		return "enable " + comp.Group(n.Group).Name
	case *ir.Invoke:
		return "invoke " + comp.Cell(n.Cell).Name
	case *ir.Empty:
		return "empty"
	case *ir.StaticSeq:
		return fmt.Sprintf("static seq<%d>", n.Latency)
	case *ir.StaticPar:
		return fmt.Sprintf("static par<%d>", n.Latency)
	case *ir.StaticIf:
		return fmt.Sprintf("static if<%d>", n.Latency)
	case *ir.StaticRepeat:
		return fmt.Sprintf("static repeat %d<%d>", n.NumRepeats, n.Latency)
	case *ir.StaticEnable:
		return "static enable " + comp.Group(n.Group).Name
	default:
		return fmt.Sprintf("%T", c)
	}
}

func controlChildren(c ir.Control) []ir.Control {
	switch n := c.(type) {
	case *ir.Seq:
		return n.Stmts
	case *ir.Par:
		return n.Stmts
	case *ir.If:
		return []ir.Control{n.True, n.False}
	case *ir.While:
		return []ir.Control{n.Body}
	case *ir.Repeat:
		return []ir.Control{n.Body}
	case *ir.StaticSeq:
		return n.Stmts
	case *ir.StaticPar:
		return n.Stmts
	case *ir.StaticIf:
		return []ir.Control{n.True, n.False}
	case *ir.StaticRepeat:
		return []ir.Control{n.Body}
	default:
		return nil
	}
}

func strategyName(s analysis.RepeatStrategy) string {
	switch s {
	case analysis.StrategyUnroll:
		return "unroll"
	case analysis.StrategyInline:
		return "inline"
	case analysis.StrategyOffload:
		return "offload"
	default:
		return "none"
	}
}

func newExtractCmd(out, errOut io.Writer) *cobra.Command {
	var diagFormat string
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Select the best representative term from a serialized e-graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			g, err := extract.LoadEGraph(f)
			if err != nil {
				return err
			}
			reporter := diag.NewReporter(errOut, diagFormat)
			term, cost, err := extract.Extract(g, reporter)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "cost %d\n", cost)
			fmt.Fprintln(out, term.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&diagFormat, "diag-format", "text", "Diagnostic rendering: text or json")
	return cmd
}

func newDumpCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [file]",
		Short: "Parse a context description and print its IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadContext(args[0])
			if err != nil {
				return err
			}
			for _, comp := range ctx.Components {
				ir.Dump(comp, out)
			}
			return nil
		},
	}
}
