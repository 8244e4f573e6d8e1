// Package differential implements differential evolution, a gradient-free
// population minimizer for bounded continuous problems.
package differential

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

const (
	// Name identifies the algorithm in results and metrics.
	Name = "differential_evolution"

	// DefaultPopulationMultiplier times the dimension count gives the
	// population size when none is configured.
	DefaultPopulationMultiplier = 15
	DefaultMaxIterations        = 1000
	DefaultCrossoverRate        = 0.7
	DefaultTolerance            = 0.01

	// The differential weight is redrawn from [ditherMin, ditherMax) every
	// generation.
	ditherMin = 0.5
	ditherMax = 1.0

	minPopulation = 5
)

// Optimizer implements the best/1/bin differential evolution strategy with
// Latin hypercube initialization and a Nelder-Mead polish of the winner.
type Optimizer struct {
	config optimization.OptimizerConfig
	logger *zap.Logger
	polish bool

	mu      sync.RWMutex
	best    *optimization.Solution
	history []optimization.Evaluation
	cancel  context.CancelFunc

	evaluations atomic.Int64
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. The optimizer names it after the algorithm.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPolish toggles the final local search. It is on by default.
func WithPolish(enabled bool) Option {
	return func(o *Optimizer) { o.polish = enabled }
}

// NewOptimizer creates a differential evolution optimizer. Zero fields of
// config take the package defaults.
func NewOptimizer(config optimization.OptimizerConfig, opts ...Option) *Optimizer {
	o := &Optimizer{
		config: withDefaults(config),
		logger: zap.NewNop(),
		polish: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named(Name)
	return o
}

// Minimize is a convenience wrapper returning only the best point and value.
func Minimize(ctx context.Context, objective optimization.ObjectiveFunction, bounds [][2]float64, config optimization.OptimizerConfig, opts ...Option) ([]float64, float64, error) {
	config.Objective = objective
	config.Bounds = bounds
	result, err := NewOptimizer(config, opts...).Optimize(ctx, config)
	if err != nil {
		return nil, 0, err
	}
	return result.BestSolution.Parameters, result.BestSolution.Value, nil
}

func withDefaults(config optimization.OptimizerConfig) optimization.OptimizerConfig {
	if config.MaxIterations == 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.PopulationSize == 0 {
		config.PopulationSize = DefaultPopulationMultiplier * len(config.Bounds)
	}
	if config.PopulationSize < minPopulation {
		config.PopulationSize = minPopulation
	}
	if config.CrossoverRate == 0 {
		config.CrossoverRate = DefaultCrossoverRate
	}
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	if config.Workers == 0 {
		config.Workers = 1
	}
	return config
}

// Name implements optimization.Optimizer.
func (o *Optimizer) Name() string { return Name }

// Optimize runs differential evolution. A config with a non-nil objective
// replaces the one given at construction.
func (o *Optimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	if config.Objective != nil {
		o.config = withDefaults(config)
	}
	if err := optimization.ValidateConfig(o.config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration").WithOperation("Optimize").WithComponent(Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.best = nil
	o.history = make([]optimization.Evaluation, 0, 64)
	o.mu.Unlock()
	defer cancel()

	o.evaluations.Store(0)
	start := time.Now()

	cfg := o.config
	rng := optimization.NewRand(cfg.RandomSeed)
	objective := o.counted(cfg.Objective)
	nDims := len(cfg.Bounds)
	n := cfg.PopulationSize

	o.logger.Debug("Starting differential evolution",
		zap.Int("dimensions", nDims),
		zap.Int("population", n),
		zap.Int("max_iterations", cfg.MaxIterations),
		zap.Float64("crossover_rate", cfg.CrossoverRate),
		zap.Int("workers", cfg.Workers))

	population := optimization.LatinHypercube(rng, cfg.Bounds, n)
	energies, err := optimization.EvaluateAll(ctx, objective, population, cfg.Workers)
	if err != nil {
		return nil, o.fail(err, "initial population")
	}
	bestIdx := floats.MinIdx(energies)
	o.record(0, population[bestIdx], energies[bestIdx])

	trials := make([][]float64, n)
	for i := range trials {
		trials[i] = make([]float64, nDims)
	}

	converged := false
	generation := 0
	for generation < cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		generation++

		scale := ditherMin + rng.Float64()*(ditherMax-ditherMin)
		best := population[bestIdx]
		for i := range population {
			o.mutate(rng, trials[i], population, best, i, scale)
			optimization.Clip(trials[i], cfg.Bounds)
		}

		trialEnergies, err := optimization.EvaluateAll(ctx, objective, trials, cfg.Workers)
		if err != nil {
			return nil, o.fail(err, "trial population")
		}
		for i, e := range trialEnergies {
			if e <= energies[i] {
				copy(population[i], trials[i])
				energies[i] = e
			}
		}
		bestIdx = floats.MinIdx(energies)
		o.record(generation, population[bestIdx], energies[bestIdx])

		mean, std := stat.PopMeanStdDev(energies, nil)
		if cfg.Verbose {
			o.logger.Info("Generation complete",
				zap.Int("generation", generation),
				zap.Float64("best", energies[bestIdx]),
				zap.Float64("mean", mean),
				zap.Float64("std", std))
		}
		if std <= cfg.Tolerance*math.Abs(mean) {
			converged = true
			break
		}
	}

	if o.polish {
		if err := o.polishBest(ctx, objective, population[bestIdx], energies[bestIdx]); err != nil {
			return nil, o.fail(err, "polish")
		}
	}

	best := o.GetBestSolution()
	o.logger.Debug("Differential evolution finished",
		zap.Int("generations", generation),
		zap.Bool("converged", converged),
		zap.Float64("best", best.Value),
		zap.Int64("evaluations", o.evaluations.Load()))

	return &optimization.OptimizationResult{
		Optimizer:    Name,
		BestSolution: best,
		History:      o.GetHistory(),
		Iterations:   generation,
		Evaluations:  int(o.evaluations.Load()),
		Converged:    converged,
		Duration:     time.Since(start),
	}, nil
}

// mutate writes the best/1/bin trial vector for candidate i into trial:
// best + scale*(x[r0]-x[r1]), binomially crossed with the candidate. At
// least one coordinate always comes from the mutant.
func (o *Optimizer) mutate(rng *rand.Rand, trial []float64, population [][]float64, best []float64, i int, scale float64) {
	r0, r1 := pickTwo(rng, len(population), i)
	candidate := population[i]
	fill := rng.Intn(len(trial))
	for j := range trial {
		if j == fill || rng.Float64() < o.config.CrossoverRate {
			trial[j] = best[j] + scale*(population[r0][j]-population[r1][j])
		} else {
			trial[j] = candidate[j]
		}
	}
}

// pickTwo returns two distinct indices in [0, n) that differ from exclude.
func pickTwo(rng *rand.Rand, n, exclude int) (int, int) {
	r0 := rng.Intn(n - 1)
	if r0 >= exclude {
		r0++
	}
	r1 := rng.Intn(n - 2)
	lo, hi := exclude, r0
	if lo > hi {
		lo, hi = hi, lo
	}
	if r1 >= lo {
		r1++
	}
	if r1 >= hi {
		r1++
	}
	return r0, r1
}

// polishBest runs a bounded Nelder-Mead search from x and keeps the result
// when it improves on value.
func (o *Optimizer) polishBest(ctx context.Context, objective optimization.ObjectiveFunction, x []float64, value float64) error {
	bounds := o.config.Bounds
	var evalErr error
	point := make([]float64, len(x))

	problem := optimize.Problem{
		Func: func(v []float64) float64 {
			if evalErr != nil || ctx.Err() != nil {
				return math.Inf(1)
			}
			copy(point, v)
			optimization.Clip(point, bounds)
			f, err := objective(point)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return f
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Relative:   1e-6,
			Iterations: 50,
		},
		FuncEvaluations: 200 * len(x),
	}
	method := &optimize.NelderMead{SimplexSize: 0.05}

	result, err := optimize.Minimize(problem, x, settings, method)
	if evalErr != nil {
		return evalErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil {
		o.logger.Debug("Polish did not complete", zap.Error(err))
		return nil
	}
	if err != nil {
		o.logger.Debug("Polish stopped early", zap.Error(err), zap.String("status", result.Status.String()))
	}

	polished := append([]float64(nil), result.X...)
	optimization.Clip(polished, bounds)
	if result.F < value {
		o.logger.Debug("Polish improved the best solution",
			zap.Float64("before", value),
			zap.Float64("after", result.F))
		o.updateBest(polished, result.F)
	}
	return nil
}

func (o *Optimizer) counted(objective optimization.ObjectiveFunction) optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		o.evaluations.Add(1)
		return objective(x)
	}
}

func (o *Optimizer) record(generation int, x []float64, value float64) {
	o.updateBest(x, value)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, optimization.Evaluation{
		Iteration: generation,
		Solution:  &optimization.Solution{Parameters: append([]float64(nil), x...), Value: value},
	})
}

func (o *Optimizer) updateBest(x []float64, value float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.best == nil || value < o.best.Value {
		o.best = &optimization.Solution{
			Parameters: append([]float64(nil), x...),
			Value:      value,
		}
	}
}

func (o *Optimizer) fail(err error, stage string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Wrapf(err, "evaluating %s", stage).WithOperation("Optimize").WithComponent(Name)
}

// GetBestSolution returns the best solution found so far.
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.best
}

// GetHistory returns the best solution after every generation.
func (o *Optimizer) GetHistory() []optimization.Evaluation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.Evaluation(nil), o.history...)
}

// Stop cancels a running optimization.
func (o *Optimizer) Stop() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.cancel != nil {
		o.cancel()
	}
}
