package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
)

// DefaultSamples is the number of points drawn per membership curve.
const DefaultSamples = 200

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// PlotMemberships draws one PNG per input and output variable of e into
// dir, one line per term, and returns the files written.
func PlotMemberships(e *fuzzy.Engine, dir string, samples int) ([]string, error) {
	if samples < 2 {
		samples = DefaultSamples
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating plot directory: %w", err)
	}

	variables := append([]*fuzzy.Variable(nil), e.Inputs()...)
	for _, o := range e.Outputs() {
		variables = append(variables, o.Variable)
	}

	files := make([]string, 0, len(variables))
	for _, v := range variables {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s: %s", e.Name(), v.Name())
		p.X.Label.Text = v.Name()
		p.Y.Label.Text = "membership"
		p.Y.Min, p.Y.Max = 0, 1.05

		lo, hi := v.Range()
		for i, term := range v.Terms() {
			pts := make(plotter.XYs, samples)
			for j := range pts {
				x := lo + (hi-lo)*float64(j)/float64(samples-1)
				pts[j].X = x
				pts[j].Y = term.Function.Membership(x)
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return files, err
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1.5)
			p.Add(line)
			p.Legend.Add(term.Label, line)
		}
		p.Legend.Top = true

		file := filepath.Join(dir, fmt.Sprintf("%s_%s.png", e.Name(), v.Name()))
		if err := p.Save(plotWidth, plotHeight, file); err != nil {
			return files, fmt.Errorf("saving %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// PlotConvergence draws the best-so-far value of every optimizer in cmp
// against its generation and saves it as a PNG at file.
func PlotConvergence(cmp *comparison.Comparison, file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: best %s per generation", cmp.Engine, cmp.Output)
	p.X.Label.Text = "generation"
	p.Y.Label.Text = cmp.Output

	for i, r := range cmp.Results {
		pts := make(plotter.XYs, 0, len(r.History))
		for _, h := range r.History {
			if h.Solution == nil {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(h.Iteration), Y: h.Solution.Value})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(r.Optimizer, line)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}
	return p.Save(plotWidth, plotHeight, file)
}
