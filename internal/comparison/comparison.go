// Package comparison runs differential evolution and the genetic algorithm
// side by side on one engine output and reports whether they agree.
package comparison

import (
	"context"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
	"github.com/copyleftdev/fuzzopt/internal/optimization/differential"
	"github.com/copyleftdev/fuzzopt/internal/optimization/genetic"
)

// DefaultTolerance is the largest gap between the two best values, as a
// fraction of the output range, that still counts as agreement.
const DefaultTolerance = 0.01

// Config holds the per-driver settings. Objective and Bounds are filled in
// from the engine; zero values select each driver's defaults.
type Config struct {
	// Seed seeds differential evolution; the genetic algorithm uses Seed+1.
	// 0 seeds both from the clock.
	Seed      int64
	Workers   int
	Tolerance float64

	DifferentialEvolution optimization.OptimizerConfig
	Genetic               optimization.OptimizerConfig
}

// Observer is notified when a driver finishes.
type Observer interface {
	ObserveRun(optimizer string, result *optimization.OptimizationResult, err error)
}

// TestCase is one hand-picked input vector and every output it produced.
type TestCase struct {
	Inputs  []float64      `json:"inputs"`
	Outputs []fuzzy.Output `json:"outputs"`
}

// Comparison is the outcome of one side-by-side run.
type Comparison struct {
	Engine      string                             `json:"engine"`
	Output      string                             `json:"output"`
	Bounds      [][2]float64                       `json:"bounds"`
	OutputRange [2]float64                         `json:"output_range"`
	Results     []*optimization.OptimizationResult `json:"results"`
	// ValueGap is |best DE value - best GA value|.
	ValueGap float64 `json:"value_gap"`
	// Distance is the Euclidean distance between the two best points.
	Distance  float64       `json:"distance"`
	Tolerance float64       `json:"tolerance"`
	Agree     bool          `json:"agree"`
	TestCases []TestCase    `json:"test_cases,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Result returns the result of the named optimizer, or nil.
func (c *Comparison) Result(optimizer string) *optimization.OptimizationResult {
	for _, r := range c.Results {
		if r.Optimizer == optimizer {
			return r
		}
	}
	return nil
}

// Comparator runs both drivers against an objective.
type Comparator struct {
	config   Config
	logger   *zap.Logger
	observer Observer
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithLogger sets the logger handed to both drivers.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Comparator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers o to observe every driver run.
func WithObserver(o Observer) Option {
	return func(c *Comparator) { c.observer = o }
}

// New creates a Comparator.
func New(config Config, opts ...Option) *Comparator {
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	c := &Comparator{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare minimizes objective with both drivers concurrently, then
// evaluates the test vectors. Either driver failing fails the comparison.
func (c *Comparator) Compare(ctx context.Context, objective *fuzzy.Objective, vectors [][]float64) (*Comparison, error) {
	if objective == nil {
		return nil, errors.Configurationf("comparison requires an objective")
	}
	if c.config.Tolerance < 0 || c.config.Tolerance > 1 {
		return nil, errors.Configurationf("agreement tolerance %v outside [0, 1]", c.config.Tolerance)
	}

	start := time.Now()
	bounds := objective.Bounds()
	out, _ := objective.Engine().Output(objective.Output())
	lo, hi := out.Range()

	deConfig := c.driverConfig(c.config.DifferentialEvolution, objective, bounds, c.config.Seed)
	gaSeed := c.config.Seed
	if gaSeed != 0 {
		gaSeed++
	}
	gaConfig := c.driverConfig(c.config.Genetic, objective, bounds, gaSeed)

	drivers := []struct {
		optimizer optimization.Optimizer
		config    optimization.OptimizerConfig
	}{
		{differential.NewOptimizer(deConfig, differential.WithLogger(c.logger)), deConfig},
		{genetic.NewOptimizer(gaConfig, c.logger), gaConfig},
	}

	results := make([]*optimization.OptimizationResult, len(drivers))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, d := range drivers {
		i, d := i, d
		p.Go(func(ctx context.Context) error {
			result, err := d.optimizer.Optimize(ctx, d.config)
			if c.observer != nil {
				c.observer.ObserveRun(d.optimizer.Name(), result, err)
			}
			if err != nil {
				return err
			}
			results[i] = result
			c.logger.Info("Optimizer finished",
				zap.String("optimizer", d.optimizer.Name()),
				zap.Float64("best", result.BestSolution.Value),
				zap.Float64s("at", result.BestSolution.Parameters),
				zap.Int("evaluations", result.Evaluations),
				zap.Duration("duration", result.Duration))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	de, ga := results[0].BestSolution, results[1].BestSolution
	cmp := &Comparison{
		Engine:      objective.Engine().Name(),
		Output:      objective.Output(),
		Bounds:      bounds,
		OutputRange: [2]float64{lo, hi},
		Results:     results,
		ValueGap:    math.Abs(de.Value - ga.Value),
		Distance:    floats.Distance(de.Parameters, ga.Parameters, 2),
		Tolerance:   c.config.Tolerance,
	}
	cmp.Agree = cmp.ValueGap <= c.config.Tolerance*(hi-lo)

	for _, v := range vectors {
		outputs, err := objective.EvaluateAll(v)
		if err != nil {
			return nil, errors.Wrapf(err, "test vector %v", v)
		}
		cmp.TestCases = append(cmp.TestCases, TestCase{Inputs: append([]float64(nil), v...), Outputs: outputs})
	}
	cmp.Duration = time.Since(start)

	if !cmp.Agree {
		c.logger.Warn("Optimizers disagree",
			zap.Float64("gap", cmp.ValueGap),
			zap.Float64("allowed", c.config.Tolerance*(hi-lo)))
	}
	return cmp, nil
}

func (c *Comparator) driverConfig(base optimization.OptimizerConfig, objective *fuzzy.Objective, bounds [][2]float64, seed int64) optimization.OptimizerConfig {
	base.Objective = objective.Evaluate
	base.Bounds = bounds
	if base.RandomSeed == 0 {
		base.RandomSeed = seed
	}
	if base.Workers == 0 {
		base.Workers = c.config.Workers
	}
	return base
}
