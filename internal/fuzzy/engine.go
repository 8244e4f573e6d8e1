package fuzzy

import (
	"fmt"
	"math"
	"strings"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// FallbackPolicy picks the value of an output whose aggregated curve is zero
// everywhere, i.e. when no rule fired for it.
type FallbackPolicy int

const (
	// FallbackMidpoint uses (min+max)/2. It is the zero value.
	FallbackMidpoint FallbackPolicy = iota
	// FallbackMinimum uses the lower bound of the output range.
	FallbackMinimum
	// FallbackMaximum uses the upper bound of the output range.
	FallbackMaximum
	// FallbackDefault uses OutputConfig.DefaultValue.
	FallbackDefault
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackMinimum:
		return "minimum"
	case FallbackMaximum:
		return "maximum"
	case FallbackDefault:
		return "default"
	default:
		return "midpoint"
	}
}

// OutputConfig describes an output variable.
type OutputConfig struct {
	VariableConfig
	// Aggregation combines the activated terms. Required.
	Aggregation Norm
	// Defuzzifier defaults to Centroid{Resolution: DefaultResolution}.
	Defuzzifier Defuzzifier
	Fallback    FallbackPolicy
	// DefaultValue is used only with FallbackDefault and must lie in range.
	DefaultValue float64
}

// OutputVariable is a linguistic variable with aggregation and
// defuzzification settings.
type OutputVariable struct {
	*Variable
	aggregation   Norm
	defuzzifier   Defuzzifier
	fallback      FallbackPolicy
	fallbackValue float64
}

func newOutputVariable(cfg OutputConfig) (*OutputVariable, error) {
	v, err := newVariable(cfg.VariableConfig)
	if err != nil {
		return nil, err
	}
	if cfg.Aggregation == nil {
		return nil, errors.Configurationf("output %s: aggregation is required", cfg.Name)
	}
	o := &OutputVariable{
		Variable:    v,
		aggregation: cfg.Aggregation,
		defuzzifier: cfg.Defuzzifier,
		fallback:    cfg.Fallback,
	}
	if o.defuzzifier == nil {
		o.defuzzifier = Centroid{Resolution: DefaultResolution}
	}
	if resolutionOf(o.defuzzifier) < 1 {
		return nil, errors.Configurationf("output %s: defuzzifier resolution must be positive", cfg.Name)
	}

	switch cfg.Fallback {
	case FallbackMidpoint:
		o.fallbackValue = v.midpoint()
	case FallbackMinimum:
		o.fallbackValue = v.min
	case FallbackMaximum:
		o.fallbackValue = v.max
	case FallbackDefault:
		if math.IsNaN(cfg.DefaultValue) || cfg.DefaultValue < v.min || cfg.DefaultValue > v.max {
			return nil, errors.Configurationf("output %s: default value %v outside [%v, %v]", cfg.Name, cfg.DefaultValue, v.min, v.max)
		}
		o.fallbackValue = cfg.DefaultValue
	default:
		return nil, errors.Configurationf("output %s: unknown fallback policy %d", cfg.Name, cfg.Fallback)
	}
	return o, nil
}

// Aggregation returns the aggregation operator.
func (o *OutputVariable) Aggregation() Norm { return o.aggregation }

// Defuzzifier returns the defuzzifier.
func (o *OutputVariable) Defuzzifier() Defuzzifier { return o.defuzzifier }

// Fallback returns the policy and the value used when no rule fires.
func (o *OutputVariable) Fallback() (FallbackPolicy, float64) { return o.fallback, o.fallbackValue }

// Config describes an engine topology.
type Config struct {
	Name       string
	Inputs     []VariableConfig
	Outputs    []OutputConfig
	RuleBlocks []RuleBlockConfig
}

// Engine is an immutable Mamdani inference system. All methods are safe for
// concurrent use; evaluation state lives in sessions.
type Engine struct {
	name        string
	inputs      []*Variable
	outputs     []*OutputVariable
	blocks      []*RuleBlock
	inputIndex  map[string]int
	outputIndex map[string]int

	sessions *SessionPool
}

// NewEngine validates cfg, parses every rule and returns the engine. Any
// problem yields a KindConfiguration error and a nil engine.
func NewEngine(cfg Config) (*Engine, error) {
	e, err := build(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "engine %q", cfg.Name).WithOperation("NewEngine").WithComponent("fuzzy")
	}
	return e, nil
}

func build(cfg Config) (*Engine, error) {
	if len(cfg.Inputs) == 0 {
		return nil, errors.Configurationf("at least one input variable is required")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.Configurationf("at least one output variable is required")
	}
	if len(cfg.RuleBlocks) == 0 {
		return nil, errors.Configurationf("at least one rule block is required")
	}

	e := &Engine{
		name:        cfg.Name,
		inputIndex:  make(map[string]int, len(cfg.Inputs)),
		outputIndex: make(map[string]int, len(cfg.Outputs)),
	}
	seen := make(map[string]bool, len(cfg.Inputs)+len(cfg.Outputs))

	for _, vc := range cfg.Inputs {
		v, err := newVariable(vc)
		if err != nil {
			return nil, err
		}
		if seen[v.name] {
			return nil, errors.Configurationf("duplicate variable %s", v.name)
		}
		seen[v.name] = true
		e.inputIndex[v.name] = len(e.inputs)
		e.inputs = append(e.inputs, v)
	}
	for _, oc := range cfg.Outputs {
		o, err := newOutputVariable(oc)
		if err != nil {
			return nil, err
		}
		if seen[o.name] {
			return nil, errors.Configurationf("duplicate variable %s", o.name)
		}
		seen[o.name] = true
		e.outputIndex[o.name] = len(e.outputs)
		e.outputs = append(e.outputs, o)
	}
	for _, bc := range cfg.RuleBlocks {
		b, err := newRuleBlock(e, bc)
		if err != nil {
			return nil, err
		}
		e.blocks = append(e.blocks, b)
	}

	e.sessions = NewSessionPool(e)
	return e, nil
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Inputs returns the input variables in declaration order.
func (e *Engine) Inputs() []*Variable {
	return append([]*Variable(nil), e.inputs...)
}

// Outputs returns the output variables in declaration order.
func (e *Engine) Outputs() []*OutputVariable {
	return append([]*OutputVariable(nil), e.outputs...)
}

// RuleBlocks returns the rule blocks in declaration order.
func (e *Engine) RuleBlocks() []*RuleBlock {
	return append([]*RuleBlock(nil), e.blocks...)
}

// Input looks up an input variable by name.
func (e *Engine) Input(name string) (*Variable, bool) {
	i, ok := e.inputIndex[name]
	if !ok {
		return nil, false
	}
	return e.inputs[i], true
}

// Output looks up an output variable by name.
func (e *Engine) Output(name string) (*OutputVariable, bool) {
	i, ok := e.outputIndex[name]
	if !ok {
		return nil, false
	}
	return e.outputs[i], true
}

// Bounds returns the [min, max] range of every input in declaration order.
func (e *Engine) Bounds() [][2]float64 {
	b := make([][2]float64, len(e.inputs))
	for i, v := range e.inputs {
		b[i] = [2]float64{v.min, v.max}
	}
	return b
}

// Evaluate runs one full inference for values, given in input order, using
// a pooled session.
func (e *Engine) Evaluate(values []float64) ([]Output, error) {
	s := e.sessions.Get()
	defer e.sessions.Put(s)

	if err := s.SetInputs(values); err != nil {
		return nil, err
	}
	s.Process()
	return s.Outputs(), nil
}

// String renders the engine in a compact, FLL-like text form.
func (e *Engine) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Engine: %s\n", e.name)
	for _, v := range e.inputs {
		fmt.Fprintf(&b, "InputVariable: %s\n  range: %g %g\n", v.name, v.min, v.max)
		writeTerms(&b, v.terms)
	}
	for _, o := range e.outputs {
		fmt.Fprintf(&b, "OutputVariable: %s\n  range: %g %g\n", o.name, o.min, o.max)
		fmt.Fprintf(&b, "  aggregation: %s\n  defuzzifier: %s %d\n  fallback: %s %g\n",
			o.aggregation.Name(), o.defuzzifier.Name(), resolutionOf(o.defuzzifier), o.fallback, o.fallbackValue)
		writeTerms(&b, o.terms)
	}
	for _, rb := range e.blocks {
		fmt.Fprintf(&b, "RuleBlock: %s\n  conjunction: %s\n  disjunction: %s\n  implication: %s\n  activation: %s\n",
			rb.name, rb.conjunction.Name(), rb.disjunction.Name(), rb.implication.Name(), rb.activation.Name())
		for _, r := range rb.rules {
			fmt.Fprintf(&b, "  rule: %s\n", r.Text)
		}
	}
	return b.String()
}

func writeTerms(b *strings.Builder, terms []Term) {
	for _, t := range terms {
		fmt.Fprintf(b, "  term: %s %v\n", t.Label, t.Function)
	}
}
