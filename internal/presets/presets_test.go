package presets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
)

func TestNamesAndLookup(t *testing.T) {
	assert.Equal(t, []string{AssistiveCare, Comparative}, Names())

	p, err := Lookup(Comparative)
	require.NoError(t, err)
	assert.Equal(t, "Output", p.Objective)
	assert.Len(t, p.TestVectors, 3)

	_, err = Lookup("Toaster")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))

	_, err = Build("Toaster", 0)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	assert.Panics(t, func() { MustBuild("Toaster", 0) })
}

func TestPresetsBuild(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			e, err := Build(name, 0)
			require.NoError(t, err)
			assert.Equal(t, name, e.Name())

			p, err := Lookup(name)
			require.NoError(t, err)
			_, ok := e.Output(p.Objective)
			assert.True(t, ok, "objective output must exist")
			for _, v := range p.TestVectors {
				_, err := e.Evaluate(v)
				require.NoError(t, err)
			}
		})
	}
}

func TestAssistiveCareScenario(t *testing.T) {
	e := MustBuild(AssistiveCare, 0)

	out, err := e.Evaluate([]float64{18, 150})
	require.NoError(t, err)
	require.Len(t, out, 2)

	heater, lights := out[0], out[1]
	assert.Equal(t, "Heater", heater.Name)
	assert.InDelta(t, 9.29047619047619, heater.Value, 1e-6)
	assert.Less(t, heater.Value, 25.0, "heater in the Off region")
	assert.Equal(t, "Lights", lights.Name)
	assert.InDelta(t, 91.2448805460751, lights.Value, 1e-6)
	assert.Greater(t, lights.Value, 75.0, "lights in the Bright region")
}

func TestAssistiveCareTestVectors(t *testing.T) {
	e := MustBuild(AssistiveCare, 0)

	tests := []struct {
		inputs []float64
		heater float64
		lights float64
	}{
		{inputs: []float64{10, 100}, heater: 91.66, lights: 91.66},
		{inputs: []float64{30, 900}, heater: 8.34, lights: 8.34},
	}

	for _, tt := range tests {
		out, err := e.Evaluate(tt.inputs)
		require.NoError(t, err)
		assert.InDelta(t, tt.heater, out[0].Value, 1e-9, "heater at %v", tt.inputs)
		assert.InDelta(t, tt.lights, out[1].Value, 1e-9, "lights at %v", tt.inputs)
	}

	// Comfortable and Medium: heater off, lights centred.
	out, err := e.Evaluate([]float64{20, 600})
	require.NoError(t, err)
	assert.InDelta(t, 8.34, out[0].Value, 1e-9)
	assert.InDelta(t, 50, out[1].Value, 1)
}

func TestAssistiveCareHeaterSweep(t *testing.T) {
	e := MustBuild(AssistiveCare, 0)

	const (
		high = 75.0
		off  = 25.0
	)
	seenOff := false
	var fired int
	for i := 0; i <= 400; i++ {
		temperature := float64(i) / 10
		out, err := e.Evaluate([]float64{temperature, 500})
		require.NoError(t, err)

		heater := out[0]
		if !heater.Fired {
			// Gaps between the temperature terms fall back to the midpoint.
			assert.Equal(t, 50.0, heater.Value, "fallback at %v", temperature)
			continue
		}
		fired++

		switch {
		case heater.Value >= high:
			require.False(t, seenOff, "heater returned to High at %v after reaching Off", temperature)
		case heater.Value <= off:
			seenOff = true
		default:
			t.Fatalf("heater %v at %v is neither High nor Off", heater.Value, temperature)
		}
	}
	assert.True(t, seenOff)
	assert.Greater(t, fired, 390)

	// The gaps are exactly the points where adjacent terms meet at zero.
	for _, temperature := range []float64{15, 25} {
		out, err := e.Evaluate([]float64{temperature, 500})
		require.NoError(t, err)
		assert.False(t, out[0].Fired, "at %v", temperature)
	}
}

func TestComparativeScenario(t *testing.T) {
	e := MustBuild(Comparative, 0)
	obj, err := fuzzy.NewObjective(e, "Output")
	require.NoError(t, err)

	tests := []struct {
		x        []float64
		expected float64
	}{
		{x: []float64{5, 7}, expected: 50},
		{x: []float64{1, 2}, expected: 25},
		{x: []float64{5, 6}, expected: 50},
		{x: []float64{8, 9}, expected: 75},
	}

	for _, tt := range tests {
		v, err := obj.Evaluate(tt.x)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, v, 1e-9, "at %v", tt.x)
	}

	// Pure function of x.
	first, err := obj.Evaluate([]float64{5, 7})
	require.NoError(t, err)
	second, err := obj.Evaluate([]float64{5, 7})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolution(t *testing.T) {
	coarse := MustBuild(AssistiveCare, 10)
	fine := MustBuild(AssistiveCare, 1000)
	def := MustBuild(AssistiveCare, 0)
	hundred := MustBuild(AssistiveCare, fuzzy.DefaultResolution)

	x := []float64{18, 150}
	a, err := def.Evaluate(x)
	require.NoError(t, err)
	b, err := hundred.Evaluate(x)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := coarse.Evaluate(x)
	require.NoError(t, err)
	f, err := fine.Evaluate(x)
	require.NoError(t, err)
	assert.NotEqual(t, c[0].Value, f[0].Value)
	assert.InDelta(t, f[0].Value, a[0].Value, 0.5)
}

func TestUndefinedTermRejected(t *testing.T) {
	cfg := ComparativeConfig(0)
	cfg.RuleBlocks[0].Rules = append(cfg.RuleBlocks[0].Rules, "if Input1 is VeryHigh then Output is High")

	e, err := fuzzy.NewEngine(cfg)
	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "VeryHigh")
}
