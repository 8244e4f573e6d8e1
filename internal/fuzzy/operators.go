package fuzzy

import "math"

// Norm is a binary operator on degrees of truth. T-norms serve as
// conjunction and implication, S-norms as disjunction and aggregation.
// Every Norm shipped here is commutative and associative.
type Norm interface {
	Compute(a, b float64) float64
	Name() string
}

// Minimum is the standard T-norm min(a, b).
type Minimum struct{}

func (Minimum) Compute(a, b float64) float64 { return math.Min(a, b) }
func (Minimum) Name() string                 { return "Minimum" }

// Maximum is the standard S-norm max(a, b).
type Maximum struct{}

func (Maximum) Compute(a, b float64) float64 { return math.Max(a, b) }
func (Maximum) Name() string                 { return "Maximum" }

// AlgebraicProduct is the T-norm a*b.
type AlgebraicProduct struct{}

func (AlgebraicProduct) Compute(a, b float64) float64 { return a * b }
func (AlgebraicProduct) Name() string                 { return "AlgebraicProduct" }

// AlgebraicSum is the S-norm a+b-a*b.
type AlgebraicSum struct{}

func (AlgebraicSum) Compute(a, b float64) float64 { return a + b - a*b }
func (AlgebraicSum) Name() string                 { return "AlgebraicSum" }

// BoundedDifference is the Lukasiewicz T-norm max(0, a+b-1).
type BoundedDifference struct{}

func (BoundedDifference) Compute(a, b float64) float64 { return math.Max(0, a+b-1) }
func (BoundedDifference) Name() string                 { return "BoundedDifference" }

// BoundedSum is the Lukasiewicz S-norm min(1, a+b).
type BoundedSum struct{}

func (BoundedSum) Compute(a, b float64) float64 { return math.Min(1, a+b) }
func (BoundedSum) Name() string                 { return "BoundedSum" }

// Activation decides which fired rules of a block pass their strength on to
// aggregation. It receives the strengths in rule order and returns, in the
// same order, the strengths that take effect (0 for suppressed rules).
type Activation interface {
	Activate(strengths []float64) []float64
	Name() string
}

// General activates every rule unconditionally.
type General struct{}

// Activate implements Activation.
func (General) Activate(strengths []float64) []float64 { return strengths }

// Name implements Activation.
func (General) Name() string { return "General" }

// Highest activates only the N rules with the highest non-zero strength.
// Ties are broken by rule order.
type Highest struct {
	N int
}

// Activate implements Activation.
func (h Highest) Activate(strengths []float64) []float64 {
	out := make([]float64, len(strengths))
	for n := 0; n < h.N; n++ {
		best := -1
		for i, s := range strengths {
			if s > 0 && out[i] == 0 && (best < 0 || s > strengths[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		out[best] = strengths[best]
	}
	return out
}

// Name implements Activation.
func (Highest) Name() string { return "Highest" }

// Threshold activates rules whose strength is at least Value.
type Threshold struct {
	Value float64
}

// Activate implements Activation.
func (t Threshold) Activate(strengths []float64) []float64 {
	out := make([]float64, len(strengths))
	for i, s := range strengths {
		if s >= t.Value {
			out[i] = s
		}
	}
	return out
}

// Name implements Activation.
func (Threshold) Name() string { return "Threshold" }
