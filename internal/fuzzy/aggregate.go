package fuzzy

import (
	"cmp"
	"slices"
)

// Activated is an output term scaled by the strength of a rule that fired it.
type Activated struct {
	Term        Term
	Degree      float64
	Implication Norm

	index int
}

// Membership returns implication(Degree, term(x)).
func (a Activated) Membership(x float64) float64 {
	return a.Implication.Compute(a.Degree, a.Term.Function.Membership(x))
}

// Aggregated is the pointwise combination of every activated term of one
// output variable.
type Aggregated struct {
	Variable    string
	Aggregation Norm
	Terms       []Activated
}

// Membership folds the activated terms with the aggregation operator. An
// empty aggregate is 0 everywhere.
func (a *Aggregated) Membership(x float64) float64 {
	var mu float64
	for i, t := range a.Terms {
		v := t.Membership(x)
		if i == 0 {
			mu = v
			continue
		}
		mu = a.Aggregation.Compute(mu, v)
	}
	return mu
}

// canonicalize orders the activated terms by term index, then degree, then
// implication name. The fold in Membership then sees the same sequence for
// any permutation of the rules, so the curve is bit-identical even for
// operators whose floating-point evaluation is not exactly associative.
func canonicalize(terms []Activated) {
	slices.SortStableFunc(terms, func(a, b Activated) int {
		if c := cmp.Compare(a.index, b.index); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Degree, b.Degree); c != 0 {
			return c
		}
		return cmp.Compare(a.Implication.Name(), b.Implication.Name())
	})
}
