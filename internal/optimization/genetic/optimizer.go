package genetic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

// Name identifies the algorithm in results and metrics.
const Name = "genetic_algorithm"

// Optimizer adapts Evolve to the optimization.Optimizer interface.
type Optimizer struct {
	config optimization.OptimizerConfig
	logger *zap.Logger

	mu      sync.RWMutex
	best    *optimization.Solution
	history []optimization.Evaluation
	cancel  context.CancelFunc

	evaluations atomic.Int64
}

// NewOptimizer creates a genetic optimizer. Zero fields of config take the
// package defaults.
func NewOptimizer(config optimization.OptimizerConfig, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		config: withDefaults(config),
		logger: logger.Named(Name),
	}
}

func withDefaults(config optimization.OptimizerConfig) optimization.OptimizerConfig {
	if config.PopulationSize == 0 {
		config.PopulationSize = DefaultPopulationSize
	}
	if config.MaxIterations == 0 {
		config.MaxIterations = DefaultGenerations
	}
	if config.CrossoverRate == 0 {
		config.CrossoverRate = DefaultCrossoverRate
	}
	if config.MutationRate == 0 {
		config.MutationRate = DefaultMutationRate
	}
	if config.Workers == 0 {
		config.Workers = 1
	}
	return config
}

// Name implements optimization.Optimizer.
func (o *Optimizer) Name() string { return Name }

// Optimize evolves a uniformly initialized population and reports its best
// individual. A config with a non-nil objective replaces the one given at
// construction.
func (o *Optimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	if config.Objective != nil {
		o.config = withDefaults(config)
	}
	cfg := o.config
	if err := optimization.ValidateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration").WithOperation("Optimize").WithComponent(Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.best = nil
	o.history = make([]optimization.Evaluation, 0, cfg.MaxIterations+1)
	o.mu.Unlock()
	defer cancel()

	o.evaluations.Store(0)
	start := time.Now()
	rng := optimization.NewRand(cfg.RandomSeed)

	o.logger.Debug("Starting genetic algorithm",
		zap.Int("dimensions", len(cfg.Bounds)),
		zap.Int("population", cfg.PopulationSize),
		zap.Int("generations", cfg.MaxIterations),
		zap.Float64("crossover_rate", cfg.CrossoverRate),
		zap.Float64("mutation_rate", cfg.MutationRate))

	objective := func(x []float64) (float64, error) {
		o.evaluations.Add(1)
		return cfg.Objective(x)
	}

	logger := o.logger
	if !cfg.Verbose {
		logger = zap.NewNop()
	}

	population := NewPopulation(rng, cfg.Bounds, cfg.PopulationSize)
	final, err := Evolve(ctx, population, objective, cfg.CrossoverRate, cfg.MutationRate, cfg.MaxIterations,
		WithRand(rng),
		WithBounds(cfg.Bounds),
		WithWorkers(cfg.Workers),
		WithLogger(logger),
		WithGenerationHook(o.record),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errors.Wrap(err, "evolving population").WithOperation("Optimize").WithComponent(Name)
	}

	winner := SelectBest(final, 1)[0]
	o.update(winner)
	best := o.GetBestSolution()

	o.logger.Debug("Genetic algorithm finished",
		zap.Float64("best", best.Value),
		zap.Int64("evaluations", o.evaluations.Load()))

	return &optimization.OptimizationResult{
		Optimizer:    Name,
		BestSolution: best,
		History:      o.GetHistory(),
		Iterations:   cfg.MaxIterations,
		Evaluations:  int(o.evaluations.Load()),
		Converged:    true,
		Duration:     time.Since(start),
	}, nil
}

// record tracks the best individual of each generation.
func (o *Optimizer) record(gen int, population Population) {
	top := SelectBest(population, 1)
	if len(top) == 0 || !top[0].Valid {
		return
	}
	o.update(top[0])
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, optimization.Evaluation{
		Iteration: gen,
		Solution: &optimization.Solution{
			Parameters: append([]float64(nil), top[0].Genes...),
			Value:      top[0].Fitness,
		},
	})
}

func (o *Optimizer) update(ind *Individual) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.best == nil || ind.Fitness < o.best.Value {
		o.best = &optimization.Solution{
			Parameters: append([]float64(nil), ind.Genes...),
			Value:      ind.Fitness,
		}
	}
}

// GetBestSolution returns the best individual seen in any generation.
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.best
}

// GetHistory returns the best individual of every generation.
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
