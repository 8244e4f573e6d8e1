package genetic

import (
	"context"
	stderrors "errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

func sphere(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func individual(fitness float64, valid bool, genes ...float64) *Individual {
	return &Individual{Genes: genes, Fitness: fitness, Valid: valid}
}

func TestCrossoverBlend(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		a := individual(1, true, 0, 10, -3)
		b := individual(2, true, 4, 20, 3)

		CrossoverBlend(rng, a, b, 0.5)

		assert.False(t, a.Valid)
		assert.False(t, b.Valid)
		for g := range a.Genes {
			lo := []float64{0, 10, -3}[g]
			hi := []float64{4, 20, 3}[g]
			span := hi - lo
			// The sum of the parents' genes is preserved.
			assert.InDelta(t, lo+hi, a.Genes[g]+b.Genes[g], 1e-9)
			// alpha=0.5 can extend half a span beyond either parent.
			assert.GreaterOrEqual(t, a.Genes[g], lo-0.5*span-1e-9)
			assert.LessOrEqual(t, a.Genes[g], hi+0.5*span+1e-9)
		}
	}
}

func TestMutateGaussian(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	ind := individual(1, true, 1, 2, 3)
	MutateGaussian(rng, ind, 0, 1, 0)
	assert.Equal(t, []float64{1, 2, 3}, ind.Genes)
	assert.False(t, ind.Valid, "mutation always invalidates fitness")

	ind = individual(1, true, 1, 2, 3)
	MutateGaussian(rng, ind, 0, 1, 1)
	for i, g := range ind.Genes {
		assert.NotEqual(t, float64(i+1), g)
	}
}

func TestSelectBest(t *testing.T) {
	pop := Population{
		individual(3, true, 0),
		individual(0, false, 1),
		individual(1, true, 2),
		individual(1, true, 3),
		individual(-2, true, 4),
	}

	best := SelectBest(pop, 3)
	require.Len(t, best, 3)
	assert.Equal(t, 4.0, best[0].Genes[0])
	assert.Equal(t, 2.0, best[1].Genes[0], "ties keep population order")
	assert.Equal(t, 3.0, best[2].Genes[0])

	all := SelectBest(pop, 10)
	require.Len(t, all, 5)
	assert.False(t, all[4].Valid, "unevaluated individuals rank last")

	assert.Empty(t, SelectBest(pop, -1))
	assert.Equal(t, 3.0, pop[0].Fitness, "input order is untouched")
}

func TestSelectTournament(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pop := Population{
		individual(5, true, 0),
		individual(1, true, 1),
		individual(3, true, 2),
	}

	chosen := SelectTournament(rng, pop, 50, 30)
	require.Len(t, chosen, 50)
	for _, c := range chosen {
		assert.Equal(t, 1.0, c.Fitness, "a large tournament always finds the best")
		assert.NotSame(t, pop[1], c, "winners are clones")
	}

	chosen[0].Genes[0] = 99
	assert.Equal(t, 1.0, pop[1].Genes[0])
}

func TestPopulationStatistics(t *testing.T) {
	pop := Population{
		individual(1, true),
		individual(3, true),
		individual(100, false),
	}
	s := pop.Statistics()
	assert.Equal(t, 2, s.Evaluated)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.Std, 1e-12)

	assert.Equal(t, Stats{}, Population{}.Statistics())
}

func TestEvolve(t *testing.T) {
	bounds := [][2]float64{{-5, 5}, {-5, 5}}
	rng := rand.New(rand.NewSource(4))
	initial := NewPopulation(rng, bounds, DefaultPopulationSize)

	inBounds := func(x []float64) (float64, error) {
		for i, v := range x {
			if v < bounds[i][0] || v > bounds[i][1] {
				return 0, stderrors.New("gene outside the bounds")
			}
		}
		return sphere(x)
	}

	var generations []int
	final, err := Evolve(context.Background(), initial, inBounds,
		DefaultCrossoverRate, DefaultMutationRate, DefaultGenerations,
		WithRand(rng),
		WithBounds(bounds),
		WithGenerationHook(func(gen int, _ Population) { generations = append(generations, gen) }),
	)
	require.NoError(t, err)
	require.Len(t, final, DefaultPopulationSize)
	assert.Len(t, generations, DefaultGenerations+1)
	assert.Equal(t, 0, generations[0])

	for _, ind := range final {
		assert.True(t, ind.Valid)
	}
	best := SelectBest(final, 1)[0]
	assert.Less(t, best.Fitness, 0.5)
}

func TestEvolveErrors(t *testing.T) {
	bounds := [][2]float64{{0, 1}}
	pop := func() Population { return NewPopulation(rand.New(rand.NewSource(5)), bounds, 10) }

	tests := []struct {
		name      string
		run       func() (Population, error)
		configErr bool
	}{
		{name: "nil objective", configErr: true, run: func() (Population, error) {
			return Evolve(context.Background(), pop(), nil, 0.5, 0.5, 1)
		}},
		{name: "tiny population", configErr: true, run: func() (Population, error) {
			return Evolve(context.Background(), pop()[:1], sphere, 0.5, 0.5, 1)
		}},
		{name: "crossover rate", configErr: true, run: func() (Population, error) {
			return Evolve(context.Background(), pop(), sphere, 1.5, 0.5, 1)
		}},
		{name: "negative generations", configErr: true, run: func() (Population, error) {
			return Evolve(context.Background(), pop(), sphere, 0.5, 0.5, -1)
		}},
		{name: "objective failure", run: func() (Population, error) {
			return Evolve(context.Background(), pop(), func([]float64) (float64, error) {
				return 0, stderrors.New("boom")
			}, 0.5, 0.5, 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.run()
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.configErr, errors.Is(err, errors.ErrConfiguration))
		})
	}
}

func TestOptimizer(t *testing.T) {
	config := optimization.OptimizerConfig{
		Objective:  sphere,
		Bounds:     [][2]float64{{-5, 5}, {-5, 5}},
		RandomSeed: 77,
	}

	opt := NewOptimizer(config, nil)
	assert.Equal(t, Name, opt.Name())

	result, err := opt.Optimize(context.Background(), config)
	require.NoError(t, err)
	assert.Equal(t, Name, result.Optimizer)
	assert.Equal(t, DefaultGenerations, result.Iterations)
	assert.GreaterOrEqual(t, result.Evaluations, DefaultPopulationSize)
	require.Len(t, result.History, DefaultGenerations+1)
	assert.Less(t, result.BestSolution.Value, 0.5)
	assert.Equal(t, result.BestSolution, opt.GetBestSolution())

	for _, h := range result.History {
		assert.GreaterOrEqual(t, h.Solution.Value, result.BestSolution.Value)
	}
}

func TestOptimizerDeterministic(t *testing.T) {
	run := func(workers int) *optimization.OptimizationResult {
		config := optimization.OptimizerConfig{
			Objective:  sphere,
			Bounds:     [][2]float64{{-5, 5}, {-5, 5}},
			RandomSeed: 2024,
			Workers:    workers,
		}
		result, err := NewOptimizer(config, nil).Optimize(context.Background(), config)
		require.NoError(t, err)
		return result
	}

	serial, parallel := run(1), run(8)
	assert.Equal(t, serial.BestSolution, parallel.BestSolution)
	assert.Equal(t, serial.Evaluations, parallel.Evaluations)
}

func TestOptimizerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := optimization.OptimizerConfig{Objective: sphere, Bounds: [][2]float64{{0, 1}}, RandomSeed: 1}
	_, err := NewOptimizer(config, nil).Optimize(ctx, config)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewOptimizer(optimization.OptimizerConfig{}, nil).Optimize(context.Background(), optimization.OptimizerConfig{})
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
