package genetic

import (
	"math/rand"

	"github.com/copyleftdev/fuzzopt/internal/optimization"
)

// CrossoverBlend mates a and b in place. For every gene a fresh
// gamma = (1+2*alpha)*u - alpha is drawn and the genes become
// (1-gamma)*x1 + gamma*x2 and gamma*x1 + (1-gamma)*x2.
func CrossoverBlend(rng *rand.Rand, a, b *Individual, alpha float64) {
	n := len(a.Genes)
	if len(b.Genes) < n {
		n = len(b.Genes)
	}
	for i := 0; i < n; i++ {
		gamma := (1+2*alpha)*rng.Float64() - alpha
		x1, x2 := a.Genes[i], b.Genes[i]
		a.Genes[i] = (1-gamma)*x1 + gamma*x2
		b.Genes[i] = gamma*x1 + (1-gamma)*x2
	}
	a.invalidate()
	b.invalidate()
}

// MutateGaussian adds N(mu, sigma) noise to each gene with probability
// indpb.
func MutateGaussian(rng *rand.Rand, ind *Individual, mu, sigma, indpb float64) {
	for i := range ind.Genes {
		if rng.Float64() < indpb {
			ind.Genes[i] += mu + sigma*rng.NormFloat64()
		}
	}
	ind.invalidate()
}

// clamp keeps every gene inside bounds. A nil bounds slice disables it.
func clamp(ind *Individual, bounds [][2]float64) {
	if bounds == nil {
		return
	}
	optimization.Clip(ind.Genes, bounds)
}
