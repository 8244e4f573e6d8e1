// Package optimization defines the contract shared by the black-box
// minimizers that search a fuzzy engine's input space.
package optimization

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Name identifies the algorithm in logs, reports and metrics
	Name() string

	// Optimize runs the optimization process
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the history of evaluations
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer. Zero values
// select the algorithm's defaults.
type OptimizerConfig struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Bounds for each dimension [min, max]
	Bounds [][2]float64

	// Maximum number of generations
	MaxIterations int

	// PopulationSize is the absolute population size. For differential
	// evolution it defaults to a multiple of the dimension count.
	PopulationSize int

	// CrossoverRate is the recombination constant (DE) or mating
	// probability (GA)
	CrossoverRate float64

	// MutationRate is the per-individual mutation probability (GA). DE
	// dithers its differential weight and ignores it.
	MutationRate float64

	// Tolerance is the relative convergence tolerance
	Tolerance float64

	// Workers bounds concurrent objective evaluations; 1 evaluates serially
	Workers int

	// Random seed for reproducibility; 0 seeds from the clock
	RandomSeed int64

	// Verbose logging
	Verbose bool
}

// ObjectiveFunction defines the function to be minimized
type ObjectiveFunction func([]float64) (float64, error)

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// Evaluation records the best solution after one generation
type Evaluation struct {
	Iteration int       `json:"iteration"`
	Solution  *Solution `json:"solution"`
	Error     error     `json:"-"`
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	Optimizer    string        `json:"optimizer"`
	BestSolution *Solution     `json:"best_solution"`
	History      []Evaluation  `json:"history,omitempty"`
	Iterations   int           `json:"iterations"`
	Evaluations  int           `json:"evaluations"`
	Converged    bool          `json:"converged"`
	Duration     time.Duration `json:"duration"`
}

// ValidateConfig checks the parts of config every optimizer relies on.
func ValidateConfig(config OptimizerConfig) error {
	if config.Objective == nil {
		return errors.Configurationf("objective function is required")
	}
	if len(config.Bounds) == 0 {
		return errors.Configurationf("at least one bounded dimension is required")
	}
	for i, b := range config.Bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || math.IsInf(b[0], 0) || math.IsInf(b[1], 0) {
			return errors.Configurationf("bounds of dimension %d are not finite: %v", i, b)
		}
		if b[0] >= b[1] {
			return errors.Configurationf("bounds of dimension %d must satisfy min < max, got %v", i, b)
		}
	}
	if config.CrossoverRate < 0 || config.CrossoverRate > 1 {
		return errors.Configurationf("crossover rate %v outside [0, 1]", config.CrossoverRate)
	}
	if config.MutationRate < 0 || config.MutationRate > 1 {
		return errors.Configurationf("mutation rate %v outside [0, 1]", config.MutationRate)
	}
	if config.Tolerance < 0 || config.MaxIterations < 0 || config.PopulationSize < 0 || config.Workers < 0 {
		return errors.Configurationf("tolerance, iterations, population size and workers must not be negative")
	}
	return nil
}

// Clip clamps every coordinate of x into its bounds in place.
func Clip(x []float64, bounds [][2]float64) {
	for i := range x {
		x[i] = math.Max(bounds[i][0], math.Min(x[i], bounds[i][1]))
	}
}

// NewRand returns a generator seeded with seed, or with the clock when seed
// is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// LatinHypercube draws n points from bounds so that every dimension has
// exactly one sample in each of n equal strata.
func LatinHypercube(rng *rand.Rand, bounds [][2]float64, n int) [][]float64 {
	nDims := len(bounds)
	samples := make([][]float64, n)
	for j := range samples {
		samples[j] = make([]float64, nDims)
	}

	strata := make([]float64, n)
	for i := 0; i < nDims; i++ {
		for j := 0; j < n; j++ {
			strata[j] = (float64(j) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(k, l int) {
			strata[k], strata[l] = strata[l], strata[k]
		})

		min, max := bounds[i][0], bounds[i][1]
		for j := 0; j < n; j++ {
			samples[j][i] = min + strata[j]*(max-min)
		}
	}
	return samples
}

// UniformSample draws n points uniformly from bounds.
func UniformSample(rng *rand.Rand, bounds [][2]float64, n int) [][]float64 {
	samples := make([][]float64, n)
	for j := range samples {
		samples[j] = make([]float64, len(bounds))
		for i, b := range bounds {
			samples[j][i] = b[0] + rng.Float64()*(b[1]-b[0])
		}
	}
	return samples
}
