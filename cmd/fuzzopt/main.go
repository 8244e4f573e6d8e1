// Command fuzzopt evaluates a preset fuzzy engine, minimizes one of its
// outputs with differential evolution and a genetic algorithm, and reports
// whether the two optimizers agree.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/copyleftdev/fuzzopt/internal/comparison"
	"github.com/copyleftdev/fuzzopt/internal/config"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/logging"
	"github.com/copyleftdev/fuzzopt/internal/presets"
	"github.com/copyleftdev/fuzzopt/internal/report"
)

// Exit codes
const (
	exitOK       = 0
	exitDisagree = 1
	exitError    = 2
)

type options struct {
	engine        string
	output        string
	seed          int64
	workers       int
	tolerance     float64
	resolution    int
	reportDir     string
	plots         bool
	list          bool
	logLevel      string
	deMaxIter     int
	gaGenerations int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("fuzzopt", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&o.engine, "engine", "e", config.GetEnv("FUZZOPT_ENGINE", presets.Comparative), "preset engine to optimize")
	fs.StringVarP(&o.output, "output", "o", "", "output variable to minimize (default: the preset objective)")
	fs.Int64Var(&o.seed, "seed", 0, "random seed; 0 seeds from the clock")
	fs.IntVarP(&o.workers, "workers", "w", config.GetEnvAsInt("OPT_WORKER_COUNT", 4), "parallel objective evaluations per optimizer")
	fs.Float64Var(&o.tolerance, "tolerance", comparison.DefaultTolerance, "allowed value gap as a fraction of the output range")
	fs.IntVar(&o.resolution, "resolution", config.GetEnvAsInt("FUZZY_RESOLUTION", 100), "centroid defuzzifier resolution")
	fs.StringVar(&o.reportDir, "report-dir", config.GetEnv("REPORT_DIR", "reports"), "directory for plots and charts")
	fs.BoolVar(&o.plots, "plots", true, "write membership plots, convergence plot and scatter chart")
	fs.BoolVarP(&o.list, "list", "l", false, "list the preset engines and exit")
	fs.StringVar(&o.logLevel, "log-level", config.GetEnv("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")
	fs.IntVar(&o.deMaxIter, "de-maxiter", 0, "differential evolution generation limit (0: default)")
	fs.IntVar(&o.gaGenerations, "ga-generations", 0, "genetic algorithm generations (0: default)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.workers < 1 {
		return nil, fmt.Errorf("--workers must be positive, got %d", o.workers)
	}
	if o.resolution < 1 {
		return nil, fmt.Errorf("--resolution must be positive, got %d", o.resolution)
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitError
	}

	if o.list {
		for _, name := range presets.Names() {
			p, _ := presets.Lookup(name)
			fmt.Fprintf(stdout, "%-18s %s (minimizes %s)\n", name, p.Description, p.Objective)
		}
		return exitOK
	}

	logger, err := logging.NewLogger(&logging.Config{Level: o.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	if err := compare(ctx, o, logger, stdout); err != nil {
		if errors.Is(err, errDisagree) {
			return exitDisagree
		}
		logger.Error("Comparison failed", map[string]interface{}{"error": err})
		fmt.Fprintf(stderr, "fuzzopt: %v\n", err)
		return exitError
	}
	return exitOK
}

var errDisagree = errors.New("optimizers disagree")

func compare(ctx context.Context, o *options, logger *logging.Logger, stdout io.Writer) error {
	p, err := presets.Lookup(o.engine)
	if err != nil {
		return err
	}
	engine, err := presets.Build(o.engine, o.resolution)
	if err != nil {
		return err
	}
	output := o.output
	if output == "" {
		output = p.Objective
	}
	objective, err := fuzzy.NewObjective(engine, output)
	if err != nil {
		return err
	}

	cfg := comparison.Config{
		Seed:      o.seed,
		Workers:   o.workers,
		Tolerance: o.tolerance,
	}
	cfg.DifferentialEvolution.MaxIterations = o.deMaxIter
	cfg.Genetic.MaxIterations = o.gaGenerations

	logger.Info("Comparing optimizers", map[string]interface{}{
		"engine": o.engine,
		"output": output,
		"seed":   o.seed,
	})

	cmp, err := comparison.New(cfg, comparison.WithLogger(logger.Zap())).Compare(ctx, objective, p.TestVectors)
	if err != nil {
		return err
	}
	if err := report.WriteSummary(stdout, cmp); err != nil {
		return err
	}

	if o.plots {
		files, err := writePlots(o.reportDir, cmp, engine)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout)
		for _, f := range files {
			fmt.Fprintf(stdout, "Wrote %s\n", f)
		}
	}

	if !cmp.Agree {
		return errDisagree
	}
	return nil
}
