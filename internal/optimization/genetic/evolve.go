package genetic

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

const (
	DefaultPopulationSize = 50
	DefaultGenerations    = 40
	DefaultCrossoverRate  = 0.7
	DefaultMutationRate   = 0.2
	DefaultBlendAlpha     = 0.5
	DefaultSigma          = 1.0
	DefaultGeneRate       = 0.2
	DefaultTournamentSize = 3
)

// toolbox carries the operators and their parameters for one run.
type toolbox struct {
	rng            *rand.Rand
	bounds         [][2]float64
	alpha          float64
	sigma          float64
	geneRate       float64
	tournamentSize int
	workers        int
	logger         *zap.Logger
	onGeneration   func(generation int, population Population)
}

// Option configures Evolve.
type Option func(*toolbox)

// WithRand sets the random source. The default is seeded from the clock.
func WithRand(rng *rand.Rand) Option {
	return func(tb *toolbox) { tb.rng = rng }
}

// WithBounds clamps offspring genes into bounds after variation.
func WithBounds(bounds [][2]float64) Option {
	return func(tb *toolbox) { tb.bounds = bounds }
}

// WithBlendAlpha sets the blend crossover extent.
func WithBlendAlpha(alpha float64) Option {
	return func(tb *toolbox) { tb.alpha = alpha }
}

// WithGaussian sets the mutation standard deviation and per-gene
// probability.
func WithGaussian(sigma, geneRate float64) Option {
	return func(tb *toolbox) {
		tb.sigma = sigma
		tb.geneRate = geneRate
	}
}

// WithTournamentSize sets how many aspirants compete per selection.
func WithTournamentSize(size int) Option {
	return func(tb *toolbox) { tb.tournamentSize = size }
}

// WithWorkers bounds concurrent fitness evaluations.
func WithWorkers(n int) Option {
	return func(tb *toolbox) { tb.workers = n }
}

// WithLogger sets the logger used for per-generation statistics.
func WithLogger(logger *zap.Logger) Option {
	return func(tb *toolbox) {
		if logger != nil {
			tb.logger = logger
		}
	}
}

// WithGenerationHook registers fn to observe the population after the
// initial evaluation (generation 0) and after every generation.
func WithGenerationHook(fn func(generation int, population Population)) Option {
	return func(tb *toolbox) { tb.onGeneration = fn }
}

// Evolve runs the simple generational algorithm: evaluate the invalid
// individuals, then for each generation select a full offspring population
// by tournament, mate consecutive pairs with probability crossoverRate,
// mutate each offspring with probability mutationRate, evaluate what
// changed and replace the population. The returned population is the last
// generation; the input slice is not modified beyond fitness assignment.
func Evolve(ctx context.Context, population Population, objective optimization.ObjectiveFunction, crossoverRate, mutationRate float64, generations int, opts ...Option) (Population, error) {
	tb := &toolbox{
		alpha:          DefaultBlendAlpha,
		sigma:          DefaultSigma,
		geneRate:       DefaultGeneRate,
		tournamentSize: DefaultTournamentSize,
		workers:        1,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(tb)
	}
	if tb.rng == nil {
		tb.rng = optimization.NewRand(0)
	}

	if objective == nil {
		return nil, errors.Configurationf("objective function is required")
	}
	if len(population) < 2 {
		return nil, errors.Configurationf("population needs at least two individuals, got %d", len(population))
	}
	if crossoverRate < 0 || crossoverRate > 1 || mutationRate < 0 || mutationRate > 1 {
		return nil, errors.Configurationf("crossover rate %v and mutation rate %v must lie in [0, 1]", crossoverRate, mutationRate)
	}
	if generations < 0 {
		return nil, errors.Configurationf("generations must not be negative, got %d", generations)
	}

	if err := tb.evaluate(ctx, population, objective); err != nil {
		return nil, err
	}
	tb.observe(0, population)

	for gen := 1; gen <= generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		offspring := SelectTournament(tb.rng, population, len(population), tb.tournamentSize)
		tb.vary(offspring, crossoverRate, mutationRate)
		if err := tb.evaluate(ctx, offspring, objective); err != nil {
			return nil, err
		}
		population = offspring
		tb.observe(gen, population)
	}
	return population, nil
}

// vary applies crossover and mutation in the order the generational
// algorithm prescribes and clamps the result.
func (tb *toolbox) vary(offspring Population, crossoverRate, mutationRate float64) {
	for i := 1; i < len(offspring); i += 2 {
		if tb.rng.Float64() < crossoverRate {
			CrossoverBlend(tb.rng, offspring[i-1], offspring[i], tb.alpha)
		}
	}
	for _, ind := range offspring {
		if tb.rng.Float64() < mutationRate {
			MutateGaussian(tb.rng, ind, 0, tb.sigma, tb.geneRate)
		}
	}
	for _, ind := range offspring {
		if !ind.Valid {
			clamp(ind, tb.bounds)
		}
	}
}

func (tb *toolbox) evaluate(ctx context.Context, population Population, objective optimization.ObjectiveFunction) error {
	invalid := population.invalid()
	if len(invalid) == 0 {
		return nil
	}
	points := make([][]float64, len(invalid))
	for i, ind := range invalid {
		points[i] = ind.Genes
	}
	values, err := optimization.EvaluateAll(ctx, objective, points, tb.workers)
	if err != nil {
		return err
	}
	for i, ind := range invalid {
		ind.Fitness = values[i]
		ind.Valid = true
	}
	return nil
}

func (tb *toolbox) observe(gen int, population Population) {
	if ce := tb.logger.Check(zap.DebugLevel, "Generation complete"); ce != nil {
		s := population.Statistics()
		ce.Write(
			zap.Int("generation", gen),
			zap.Float64("min", s.Min),
			zap.Float64("mean", s.Mean),
			zap.Float64("std", s.Std),
			zap.Float64("max", s.Max))
	}
	if tb.onGeneration != nil {
		tb.onGeneration(gen, population)
	}
}
