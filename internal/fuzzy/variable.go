package fuzzy

import (
	"fmt"
	"math"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Term is a labelled fuzzy set of a linguistic variable.
type Term struct {
	Label    string
	Function Membership
}

// Degrees maps a term label to its degree of truth.
type Degrees map[string]float64

// Of returns the degree of label. A missing label can only come from a
// reference that engine construction should have rejected, so Of panics
// instead of inventing a degree.
func (d Degrees) Of(label string) float64 {
	v, ok := d[label]
	if !ok {
		panic(fmt.Sprintf("fuzzy: no degree for term %q", label))
	}
	return v
}

// Variable is a named range with an ordered set of terms.
type Variable struct {
	name     string
	min, max float64
	terms    []Term
	index    map[string]int
}

// VariableConfig describes a linguistic variable.
type VariableConfig struct {
	Name     string
	Min, Max float64
	Terms    []Term
}

func newVariable(cfg VariableConfig) (*Variable, error) {
	if !isIdentifier(cfg.Name) {
		return nil, errors.Configurationf("variable name %q is not a valid identifier", cfg.Name)
	}
	if math.IsNaN(cfg.Min) || math.IsNaN(cfg.Max) || math.IsInf(cfg.Min, 0) || math.IsInf(cfg.Max, 0) {
		return nil, errors.Configurationf("variable %s: range must be finite, got [%v, %v]", cfg.Name, cfg.Min, cfg.Max)
	}
	if cfg.Min >= cfg.Max {
		return nil, errors.Configurationf("variable %s: minimum %v must be below maximum %v", cfg.Name, cfg.Min, cfg.Max)
	}
	if len(cfg.Terms) == 0 {
		return nil, errors.Configurationf("variable %s: at least one term is required", cfg.Name)
	}

	v := &Variable{
		name:  cfg.Name,
		min:   cfg.Min,
		max:   cfg.Max,
		terms: make([]Term, len(cfg.Terms)),
		index: make(map[string]int, len(cfg.Terms)),
	}
	for i, t := range cfg.Terms {
		if !isIdentifier(t.Label) {
			return nil, errors.Configurationf("variable %s: term label %q is not a valid identifier", cfg.Name, t.Label)
		}
		if _, dup := v.index[t.Label]; dup {
			return nil, errors.Configurationf("variable %s: duplicate term %q", cfg.Name, t.Label)
		}
		if t.Function == nil {
			return nil, errors.Configurationf("variable %s: term %q has no membership function", cfg.Name, t.Label)
		}
		if err := t.Function.Validate(); err != nil {
			return nil, errors.Wrapf(err, "variable %s: term %q", cfg.Name, t.Label)
		}
		v.terms[i] = t
		v.index[t.Label] = i
	}
	return v, nil
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Range returns the declared domain.
func (v *Variable) Range() (min, max float64) { return v.min, v.max }

// Terms returns a copy of the ordered terms.
func (v *Variable) Terms() []Term {
	return append([]Term(nil), v.terms...)
}

// Term looks up a term by label.
func (v *Variable) Term(label string) (Term, bool) {
	i, ok := v.index[label]
	if !ok {
		return Term{}, false
	}
	return v.terms[i], true
}

// Fuzzify returns the degree of x for every term. Degrees are independent of
// each other and need not sum to 1.
func (v *Variable) Fuzzify(x float64) Degrees {
	d := make(Degrees, len(v.terms))
	for _, t := range v.terms {
		d[t.Label] = t.Function.Membership(x)
	}
	return d
}

// fuzzifyInto writes the degree of each term into dst by term index.
func (v *Variable) fuzzifyInto(x float64, dst []float64) {
	for i, t := range v.terms {
		dst[i] = t.Function.Membership(x)
	}
}

func (v *Variable) midpoint() float64 {
	return v.min + (v.max-v.min)/2
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return !isKeyword(s)
}
