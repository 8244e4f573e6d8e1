package fuzzy

import (
	"math"
	"sync/atomic"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Objective exposes an engine as a pure function of its input vector, the
// form consumed by black-box optimizers. It is safe for concurrent use:
// every call runs on its own pooled session.
type Objective struct {
	engine *Engine
	output int

	evaluations atomic.Int64
}

// NewObjective returns an objective over the named output of e.
func NewObjective(e *Engine, output string) (*Objective, error) {
	if e == nil {
		return nil, errors.Configurationf("objective requires an engine")
	}
	i, ok := e.outputIndex[output]
	if !ok {
		return nil, errors.Errorf(errors.KindNotFound, "engine %s has no output variable %q", e.name, output)
	}
	return &Objective{engine: e, output: i}, nil
}

// Engine returns the wrapped engine.
func (o *Objective) Engine() *Engine { return o.engine }

// Output returns the name of the designated output.
func (o *Objective) Output() string { return o.engine.outputs[o.output].name }

// Dimensions returns the length of the input vector.
func (o *Objective) Dimensions() int { return len(o.engine.inputs) }

// Bounds returns the input ranges in declaration order.
func (o *Objective) Bounds() [][2]float64 { return o.engine.Bounds() }

// Evaluations returns how many vectors have been evaluated so far.
func (o *Objective) Evaluations() int64 { return o.evaluations.Load() }

// Evaluate assigns x to the inputs in declaration order, runs the engine and
// returns the designated output. Finite values outside an input's range are
// evaluated as is. A vector of the wrong length or containing NaN or Inf is
// rejected with a KindInvalidInput error.
func (o *Objective) Evaluate(x []float64) (float64, error) {
	s, err := o.run(x)
	if err != nil {
		return 0, err
	}
	defer o.engine.sessions.Put(s)
	return s.outputs[o.output].Value, nil
}

// EvaluateAll is Evaluate for every output, in declaration order.
func (o *Objective) EvaluateAll(x []float64) ([]Output, error) {
	s, err := o.run(x)
	if err != nil {
		return nil, err
	}
	defer o.engine.sessions.Put(s)
	return s.Outputs(), nil
}

func (o *Objective) run(x []float64) (*Session, error) {
	if len(x) != len(o.engine.inputs) {
		return nil, errors.InvalidInputf("objective over %s expects %d inputs, got %d", o.engine.name, len(o.engine.inputs), len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.InvalidInputf("input %s is not finite: %v", o.engine.inputs[i].name, v)
		}
	}

	s := o.engine.sessions.Get()
	copy(s.inputs, x)
	s.Process()
	o.evaluations.Add(1)
	return s, nil
}
