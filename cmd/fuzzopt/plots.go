package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/report"
)

// writePlots renders the membership sets, the convergence curves and, for
// two-input engines, the scatter chart of best points into dir.
func writePlots(dir string, cmp *comparison.Comparison, engine *fuzzy.Engine) ([]string, error) {
	files, err := report.PlotMemberships(engine, dir, report.DefaultSamples)
	if err != nil {
		return files, err
	}

	convergence := filepath.Join(dir, engine.Name()+"_convergence.png")
	if err := report.PlotConvergence(cmp, convergence); err != nil {
		return files, err
	}
	files = append(files, convergence)

	if len(cmp.Bounds) != 2 {
		return files, nil
	}
	scatter := filepath.Join(dir, engine.Name()+"_optima.html")
	f, err := os.Create(scatter)
	if err != nil {
		return files, fmt.Errorf("creating scatter chart: %w", err)
	}
	if err := report.WriteScatter(f, cmp); err != nil {
		f.Close()
		return files, err
	}
	if err := f.Close(); err != nil {
		return files, err
	}
	return append(files, scatter), nil
}
