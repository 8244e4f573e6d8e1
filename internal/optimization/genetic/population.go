// Package genetic implements a real-coded genetic algorithm: tournament
// selection, blend crossover and Gaussian mutation over bounded genes.
package genetic

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Individual is a candidate solution. Fitness is only meaningful while
// Valid is true; variation operators invalidate it.
type Individual struct {
	Genes   []float64
	Fitness float64
	Valid   bool
}

// Clone returns a deep copy of ind.
func (ind *Individual) Clone() *Individual {
	return &Individual{
		Genes:   append([]float64(nil), ind.Genes...),
		Fitness: ind.Fitness,
		Valid:   ind.Valid,
	}
}

func (ind *Individual) invalidate() {
	ind.Valid = false
	ind.Fitness = 0
}

// Population is an ordered set of individuals.
type Population []*Individual

// NewPopulation draws n individuals uniformly from bounds.
func NewPopulation(rng *rand.Rand, bounds [][2]float64, n int) Population {
	pop := make(Population, n)
	for i := range pop {
		genes := make([]float64, len(bounds))
		for j, b := range bounds {
			genes[j] = b[0] + rng.Float64()*(b[1]-b[0])
		}
		pop[i] = &Individual{Genes: genes}
	}
	return pop
}

// Clone returns a deep copy of the population.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, ind := range p {
		out[i] = ind.Clone()
	}
	return out
}

// invalid returns the individuals whose fitness must be computed.
func (p Population) invalid() Population {
	var out Population
	for _, ind := range p {
		if !ind.Valid {
			out = append(out, ind)
		}
	}
	return out
}

// Stats summarizes the fitness of the valid individuals.
type Stats struct {
	Min, Max, Mean, Std float64
	Evaluated           int
}

// Statistics computes Stats over the valid individuals of p.
func (p Population) Statistics() Stats {
	values := make([]float64, 0, len(p))
	for _, ind := range p {
		if ind.Valid {
			values = append(values, ind.Fitness)
		}
	}
	if len(values) == 0 {
		return Stats{}
	}
	s := Stats{Min: values[0], Max: values[0], Evaluated: len(values)}
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean, s.Std = stat.PopMeanStdDev(values, nil)
	return s
}

// SelectBest returns the k individuals with the lowest fitness, best first.
// Ties keep population order; individuals without a valid fitness rank
// last.
func SelectBest(p Population, k int) Population {
	sorted := append(Population(nil), p...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Fitness < b.Fitness
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	if k < 0 {
		k = 0
	}
	return sorted[:k]
}

// SelectTournament picks k individuals, each the best of size aspirants
// drawn with replacement. The winners are returned as clones so the caller
// may vary them freely.
func SelectTournament(rng *rand.Rand, p Population, k, size int) Population {
	if size < 1 {
		size = 1
	}
	chosen := make(Population, k)
	for i := range chosen {
		best := p[rng.Intn(len(p))]
		for j := 1; j < size; j++ {
			aspirant := p[rng.Intn(len(p))]
			if better(aspirant, best) {
				best = aspirant
			}
		}
		chosen[i] = best.Clone()
	}
	return chosen
}

func better(a, b *Individual) bool {
	if a.Valid != b.Valid {
		return a.Valid
	}
	return a.Fitness < b.Fitness
}
