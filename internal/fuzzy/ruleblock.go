package fuzzy

import (
	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// RuleBlockConfig describes a block of rules and the operators that combine
// them. Conjunction, Disjunction and Implication are required; a nil
// Activation means General.
type RuleBlockConfig struct {
	Name        string
	Conjunction Norm
	Disjunction Norm
	Implication Norm
	Activation  Activation
	Rules       []string
}

// RuleBlock is an ordered set of resolved rules with their operators.
type RuleBlock struct {
	name        string
	conjunction Norm
	disjunction Norm
	implication Norm
	activation  Activation
	rules       []*Rule
}

func newRuleBlock(e *Engine, cfg RuleBlockConfig) (*RuleBlock, error) {
	if cfg.Conjunction == nil || cfg.Disjunction == nil || cfg.Implication == nil {
		return nil, errors.Configurationf("rule block %q: conjunction, disjunction and implication are required", cfg.Name)
	}
	if len(cfg.Rules) == 0 {
		return nil, errors.Configurationf("rule block %q: no rules", cfg.Name)
	}
	b := &RuleBlock{
		name:        cfg.Name,
		conjunction: cfg.Conjunction,
		disjunction: cfg.Disjunction,
		implication: cfg.Implication,
		activation:  cfg.Activation,
		rules:       make([]*Rule, 0, len(cfg.Rules)),
	}
	if b.activation == nil {
		b.activation = General{}
	}
	for _, text := range cfg.Rules {
		r, err := ParseRule(text)
		if err != nil {
			return nil, errors.Wrapf(err, "rule block %q", cfg.Name)
		}
		if err := r.resolve(e); err != nil {
			return nil, errors.Wrapf(err, "rule block %q: rule %q", cfg.Name, text)
		}
		b.rules = append(b.rules, r)
	}
	return b, nil
}

// Name returns the block name.
func (b *RuleBlock) Name() string { return b.name }

// Rules returns the block's rules in declaration order.
func (b *RuleBlock) Rules() []*Rule {
	return append([]*Rule(nil), b.rules...)
}

// Operators returns the conjunction, disjunction and implication norms.
func (b *RuleBlock) Operators() (conjunction, disjunction, implication Norm) {
	return b.conjunction, b.disjunction, b.implication
}

// Activation returns the activation policy.
func (b *RuleBlock) Activation() Activation { return b.activation }

// activate computes every rule's firing strength into strengths, applies the
// activation policy and appends the surviving consequents to activated,
// which is indexed by output variable.
func (b *RuleBlock) activate(snapshot [][]float64, strengths []float64, activated [][]Activated, outputs []*OutputVariable) {
	for i, r := range b.rules {
		strengths[i] = r.firingStrength(snapshot, b.conjunction, b.disjunction)
	}
	effective := b.activation.Activate(strengths)
	for i, r := range b.rules {
		degree := effective[i]
		if degree <= 0 {
			continue
		}
		for _, c := range r.Consequents {
			activated[c.output] = append(activated[c.output], Activated{
				Term:        outputs[c.output].terms[c.term],
				Degree:      degree,
				Implication: b.implication,
				index:       c.term,
			})
		}
	}
}
