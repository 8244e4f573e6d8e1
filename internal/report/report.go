// Package report renders comparison runs for people: a console summary,
// PNG plots of membership functions and convergence, and an interactive
// HTML scatter of the best points found.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
)

// WriteSummary prints a human-readable summary of cmp to w.
func WriteSummary(w io.Writer, cmp *comparison.Comparison) error {
	if cmp == nil {
		return fmt.Errorf("report: nil comparison")
	}

	fmt.Fprintf(w, "Engine %s, minimizing %s over %s\n\n", cmp.Engine, cmp.Output, formatBounds(cmp.Bounds))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPTIMIZER\tBEST\tAT\tGENERATIONS\tEVALUATIONS\tCONVERGED\tDURATION")
	for _, r := range cmp.Results {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\t%d\t%s\t%t\t%s\n",
			r.Optimizer,
			r.BestSolution.Value,
			formatVector(r.BestSolution.Parameters),
			r.Iterations,
			humanize.Comma(int64(r.Evaluations)),
			r.Converged,
			r.Duration.Round(time.Microsecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	verdict := "agree"
	if !cmp.Agree {
		verdict = "DISAGREE"
	}
	allowed := cmp.Tolerance * (cmp.OutputRange[1] - cmp.OutputRange[0])
	fmt.Fprintf(w, "\nOptimizers %s: value gap %.4f (allowed %.4f), distance between optima %.4f\n",
		verdict, cmp.ValueGap, allowed, cmp.Distance)

	if len(cmp.TestCases) > 0 {
		fmt.Fprintln(w, "\nTest vectors:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INPUTS\tOUTPUTS")
		for _, tc := range cmp.TestCases {
			fmt.Fprintf(tw, "%s\t%s\n", formatVector(tc.Inputs), formatOutputs(tc.Outputs))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\nCompleted in %s\n", cmp.Duration.Round(time.Millisecond))
	return err
}

func formatVector(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatBounds(bounds [][2]float64) string {
	parts := make([]string, len(bounds))
	for i, b := range bounds {
		parts[i] = fmt.Sprintf("[%g, %g]", b[0], b[1])
	}
	return strings.Join(parts, " x ")
}

func formatOutputs(outputs []fuzzy.Output) string {
	parts := make([]string, len(outputs))
	for i, o := range outputs {
		parts[i] = fmt.Sprintf("%s=%.2f", o.Name, o.Value)
		if !o.Fired {
			parts[i] += " (fallback)"
		}
	}
	return strings.Join(parts, " ")
}
