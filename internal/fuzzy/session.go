package fuzzy

import (
	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Output is the crisp result of one output variable.
type Output struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	// Fired is false when no rule activated the variable and Value comes
	// from the fallback policy.
	Fired bool `json:"fired"`
}

// Session holds the transient value slots of one evaluation: inputs,
// fuzzified degrees, rule strengths, activated terms and outputs. A Session
// must not be used by more than one goroutine at a time; create one per
// worker or take them from a SessionPool.
type Session struct {
	engine *Engine

	inputs    []float64
	snapshot  [][]float64
	strengths [][]float64
	activated [][]Activated
	outputs   []Output
}

// NewSession allocates a session with all slots sized for e.
func (e *Engine) NewSession() *Session {
	s := &Session{
		engine:    e,
		inputs:    make([]float64, len(e.inputs)),
		snapshot:  make([][]float64, len(e.inputs)),
		strengths: make([][]float64, len(e.blocks)),
		activated: make([][]Activated, len(e.outputs)),
		outputs:   make([]Output, len(e.outputs)),
	}
	for i, v := range e.inputs {
		s.snapshot[i] = make([]float64, len(v.terms))
	}
	for i, b := range e.blocks {
		s.strengths[i] = make([]float64, len(b.rules))
	}
	s.Reset()
	return s
}

// Engine returns the engine this session evaluates.
func (s *Session) Engine() *Engine { return s.engine }

// Reset clears every slot. Inputs go back to the middle of their range.
func (s *Session) Reset() {
	for i, v := range s.engine.inputs {
		s.inputs[i] = v.midpoint()
		clear(s.snapshot[i])
	}
	for i := range s.strengths {
		clear(s.strengths[i])
	}
	for i, o := range s.engine.outputs {
		s.activated[i] = s.activated[i][:0]
		s.outputs[i] = Output{Name: o.name, Value: o.fallbackValue}
	}
}

// SetInput assigns the value slot of the named input.
func (s *Session) SetInput(name string, value float64) error {
	i, ok := s.engine.inputIndex[name]
	if !ok {
		return errors.Errorf(errors.KindNotFound, "unknown input variable %q", name)
	}
	s.inputs[i] = value
	return nil
}

// SetInputs assigns every input slot in declaration order. The length of
// values must match the number of inputs exactly.
func (s *Session) SetInputs(values []float64) error {
	if len(values) != len(s.inputs) {
		return errors.InvalidInputf("engine %s expects %d inputs, got %d", s.engine.name, len(s.inputs), len(values))
	}
	copy(s.inputs, values)
	return nil
}

// Input returns the current value of the named input.
func (s *Session) Input(name string) (float64, error) {
	i, ok := s.engine.inputIndex[name]
	if !ok {
		return 0, errors.Errorf(errors.KindNotFound, "unknown input variable %q", name)
	}
	return s.inputs[i], nil
}

// Process runs fuzzification, rule evaluation, aggregation and
// defuzzification over the current inputs. It always completes; outputs
// that no rule reached take their fallback value.
func (s *Session) Process() {
	e := s.engine
	for i, v := range e.inputs {
		v.fuzzifyInto(s.inputs[i], s.snapshot[i])
	}
	for i := range s.activated {
		s.activated[i] = s.activated[i][:0]
	}
	for i, b := range e.blocks {
		b.activate(s.snapshot, s.strengths[i], s.activated, e.outputs)
	}
	for i, o := range e.outputs {
		canonicalize(s.activated[i])
		curve := Aggregated{Variable: o.name, Aggregation: o.aggregation, Terms: s.activated[i]}
		value, ok := o.defuzzifier.Defuzzify(&curve, o.min, o.max)
		if !ok {
			value = o.fallbackValue
		}
		s.outputs[i] = Output{Name: o.name, Value: value, Fired: ok}
	}
}

// Output returns the last processed result of the named output.
func (s *Session) Output(name string) (Output, error) {
	i, ok := s.engine.outputIndex[name]
	if !ok {
		return Output{}, errors.Errorf(errors.KindNotFound, "unknown output variable %q", name)
	}
	return s.outputs[i], nil
}

// Outputs returns a copy of every output in declaration order.
func (s *Session) Outputs() []Output {
	return append([]Output(nil), s.outputs...)
}

// Fuzzified returns the degrees computed for the named input by the last
// Process call.
func (s *Session) Fuzzified(name string) (Degrees, error) {
	i, ok := s.engine.inputIndex[name]
	if !ok {
		return nil, errors.Errorf(errors.KindNotFound, "unknown input variable %q", name)
	}
	d := make(Degrees, len(s.snapshot[i]))
	for t, term := range s.engine.inputs[i].terms {
		d[term.Label] = s.snapshot[i][t]
	}
	return d, nil
}

// Aggregated returns a copy of the aggregated curve of the named output
// from the last Process call.
func (s *Session) Aggregated(name string) (*Aggregated, error) {
	i, ok := s.engine.outputIndex[name]
	if !ok {
		return nil, errors.Errorf(errors.KindNotFound, "unknown output variable %q", name)
	}
	o := s.engine.outputs[i]
	return &Aggregated{
		Variable:    o.name,
		Aggregation: o.aggregation,
		Terms:       append([]Activated(nil), s.activated[i]...),
	}, nil
}
