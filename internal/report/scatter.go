package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/errors"
)

var symbols = []string{"circle", "triangle", "diamond", "rect"}

// WriteScatter renders an HTML scatter chart of the generation-best points
// of every optimizer in cmp, plus the test vectors, to w. Only engines with
// two inputs can be drawn.
func WriteScatter(w io.Writer, cmp *comparison.Comparison) error {
	if len(cmp.Bounds) != 2 {
		return errors.InvalidInputf("scatter needs a two-input engine, %s has %d inputs", cmp.Engine, len(cmp.Bounds))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: cmp.Engine,
			Theme:     types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s: minimizing %s", cmp.Engine, cmp.Output),
			Subtitle: fmt.Sprintf("value gap %.4f, distance %.4f", cmp.ValueGap, cmp.Distance),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "x0",
			Type:      "value",
			Min:       cmp.Bounds[0][0],
			Max:       cmp.Bounds[0][1],
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "x1",
			Type:      "value",
			Min:       cmp.Bounds[1][0],
			Max:       cmp.Bounds[1][1],
			SplitLine: &opts.SplitLine{Show: opts.Bool(true)},
		}),
	)

	for i, r := range cmp.Results {
		data := make([]opts.ScatterData, 0, len(r.History))
		for _, h := range r.History {
			if h.Solution == nil {
				continue
			}
			data = append(data, opts.ScatterData{
				Name:       fmt.Sprintf("generation %d: %.4f", h.Iteration, h.Solution.Value),
				Value:      h.Solution.Parameters,
				Symbol:     symbols[i%len(symbols)],
				SymbolSize: 8,
			})
		}
		scatter.AddSeries(r.Optimizer, data)
	}

	if len(cmp.TestCases) > 0 {
		data := make([]opts.ScatterData, len(cmp.TestCases))
		for i, tc := range cmp.TestCases {
			data[i] = opts.ScatterData{
				Name:       formatOutputs(tc.Outputs),
				Value:      tc.Inputs,
				Symbol:     "pin",
				SymbolSize: 14,
			}
		}
		scatter.AddSeries("test vectors", data)
	}

	scatter.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return scatter.Render(w)
}
