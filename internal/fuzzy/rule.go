package fuzzy

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Connective joins two antecedent expressions.
type Connective int

const (
	And Connective = iota
	Or
)

func (c Connective) String() string {
	if c == Or {
		return kwOr
	}
	return kwAnd
}

// Expression is a node of a rule antecedent.
type Expression interface {
	// truth computes the degree of the expression from a fuzzified snapshot
	// indexed by [input][term].
	truth(snapshot [][]float64, conjunction, disjunction Norm) float64
	resolve(e *Engine) error
	String() string
}

// Proposition is the leaf "Variable is [not] Term".
type Proposition struct {
	Variable string
	Term     string
	Negated  bool

	input, term int
}

func (p *Proposition) truth(snapshot [][]float64, _, _ Norm) float64 {
	d := snapshot[p.input][p.term]
	if p.Negated {
		return 1 - d
	}
	return d
}

func (p *Proposition) resolve(e *Engine) error {
	i, ok := e.inputIndex[p.Variable]
	if !ok {
		if _, isOutput := e.outputIndex[p.Variable]; isOutput {
			return errors.Configurationf("output variable %s cannot appear in an antecedent", p.Variable)
		}
		return errors.Configurationf("undefined input variable %s", p.Variable)
	}
	t, ok := e.inputs[i].index[p.Term]
	if !ok {
		return errors.Configurationf("undefined term %s of input variable %s", p.Term, p.Variable)
	}
	p.input, p.term = i, t
	return nil
}

func (p *Proposition) String() string {
	if p.Negated {
		return fmt.Sprintf("%s is not %s", p.Variable, p.Term)
	}
	return fmt.Sprintf("%s is %s", p.Variable, p.Term)
}

// Operator combines two expressions with a connective.
type Operator struct {
	Connective  Connective
	Left, Right Expression
}

func (o *Operator) truth(snapshot [][]float64, conjunction, disjunction Norm) float64 {
	a := o.Left.truth(snapshot, conjunction, disjunction)
	b := o.Right.truth(snapshot, conjunction, disjunction)
	if o.Connective == Or {
		return disjunction.Compute(a, b)
	}
	return conjunction.Compute(a, b)
}

func (o *Operator) resolve(e *Engine) error {
	if err := o.Left.resolve(e); err != nil {
		return err
	}
	return o.Right.resolve(e)
}

func (o *Operator) String() string {
	return fmt.Sprintf("(%s %s %s)", o.Left, o.Connective, o.Right)
}

// Consequent is "Variable is Term" on the right-hand side of a rule.
type Consequent struct {
	Variable string
	Term     string

	output, term int
}

func (c *Consequent) resolve(e *Engine) error {
	i, ok := e.outputIndex[c.Variable]
	if !ok {
		if _, isInput := e.inputIndex[c.Variable]; isInput {
			return errors.Configurationf("input variable %s cannot appear in a consequent", c.Variable)
		}
		return errors.Configurationf("undefined output variable %s", c.Variable)
	}
	t, ok := e.outputs[i].index[c.Term]
	if !ok {
		return errors.Configurationf("undefined term %s of output variable %s", c.Term, c.Variable)
	}
	c.output, c.term = i, t
	return nil
}

func (c Consequent) String() string {
	return fmt.Sprintf("%s is %s", c.Variable, c.Term)
}

// Rule is a parsed "if ... then ..." statement.
type Rule struct {
	Text        string
	Antecedent  Expression
	Consequents []Consequent
	Weight      float64
}

// firingStrength is the weighted truth of the antecedent.
func (r *Rule) firingStrength(snapshot [][]float64, conjunction, disjunction Norm) float64 {
	return r.Weight * r.Antecedent.truth(snapshot, conjunction, disjunction)
}

func (r *Rule) resolve(e *Engine) error {
	if err := r.Antecedent.resolve(e); err != nil {
		return err
	}
	for i := range r.Consequents {
		if err := r.Consequents[i].resolve(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rule) String() string {
	parts := make([]string, len(r.Consequents))
	for i, c := range r.Consequents {
		parts[i] = c.String()
	}
	s := fmt.Sprintf("if %s then %s", r.Antecedent, strings.Join(parts, ", "))
	if r.Weight != 1 {
		s += fmt.Sprintf(" with %g", r.Weight)
	}
	return s
}
