package fuzzy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

func TestTriangleMembership(t *testing.T) {
	tests := []struct {
		name     string
		tri      Triangle
		x        float64
		expected float64
	}{
		{name: "left of support", tri: Triangle{0, 2.5, 5}, x: -1, expected: 0},
		{name: "at a", tri: Triangle{0, 2.5, 5}, x: 0, expected: 0},
		{name: "rising edge", tri: Triangle{0, 2.5, 5}, x: 1, expected: 0.4},
		{name: "peak", tri: Triangle{0, 2.5, 5}, x: 2.5, expected: 1},
		{name: "falling edge", tri: Triangle{0, 2.5, 5}, x: 4, expected: 0.4},
		{name: "at c", tri: Triangle{0, 2.5, 5}, x: 5, expected: 0},
		{name: "right of support", tri: Triangle{0, 2.5, 5}, x: 7, expected: 0},
		{name: "left spike peak", tri: Triangle{0, 0, 25}, x: 0, expected: 1},
		{name: "left spike ramp", tri: Triangle{0, 0, 25}, x: 10, expected: 0.6},
		{name: "right spike peak", tri: Triangle{75, 100, 100}, x: 100, expected: 1},
		{name: "right spike ramp", tri: Triangle{75, 100, 100}, x: 87.5, expected: 0.5},
		{name: "NaN", tri: Triangle{0, 2.5, 5}, x: math.NaN(), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.tri.Membership(tt.x), 1e-12)
		})
	}
}

func TestTrapezoidMembership(t *testing.T) {
	tests := []struct {
		name     string
		trap     Trapezoid
		x        float64
		expected float64
	}{
		{name: "left of support", trap: Trapezoid{0, 100, 200, 300}, x: -5, expected: 0},
		{name: "rising edge", trap: Trapezoid{0, 100, 200, 300}, x: 25, expected: 0.25},
		{name: "plateau start", trap: Trapezoid{0, 100, 200, 300}, x: 100, expected: 1},
		{name: "plateau", trap: Trapezoid{0, 100, 200, 300}, x: 150, expected: 1},
		{name: "plateau end", trap: Trapezoid{0, 100, 200, 300}, x: 200, expected: 1},
		{name: "falling edge", trap: Trapezoid{0, 100, 200, 300}, x: 250, expected: 0.5},
		{name: "at d", trap: Trapezoid{0, 100, 200, 300}, x: 300, expected: 0},
		{name: "shoulder left edge", trap: Trapezoid{0, 0, 10, 15}, x: 0, expected: 1},
		{name: "shoulder ramp", trap: Trapezoid{0, 0, 10, 15}, x: 12.5, expected: 0.5},
		{name: "shoulder right edge", trap: Trapezoid{25, 30, 40, 40}, x: 40, expected: 1},
		{name: "light level dark", trap: Trapezoid{0, 0, 100, 300}, x: 150, expected: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.trap.Membership(tt.x), 1e-12)
		})
	}
}

func TestMembershipProperties(t *testing.T) {
	functions := []Membership{
		Triangle{0, 2.5, 5},
		Triangle{0, 0, 25},
		Triangle{75, 100, 100},
		Triangle{3, 3, 3},
		Trapezoid{0, 0, 10, 15},
		Trapezoid{200, 400, 600, 800},
		Trapezoid{25, 30, 40, 40},
	}

	rng := rand.New(rand.NewSource(7))
	for _, f := range functions {
		lo, hi := f.Support()
		span := math.Max(hi-lo, 1)

		for i := 0; i < 2000; i++ {
			x := lo - span + rng.Float64()*3*span
			mu := f.Membership(x)
			require.GreaterOrEqual(t, mu, 0.0, "%v at %v", f, x)
			require.LessOrEqual(t, mu, 1.0, "%v at %v", f, x)
			if x < lo || x > hi {
				require.Zero(t, mu, "%v must be 0 outside its support at %v", f, x)
			}
		}

		peakLo, peakHi := f.Peak()
		assert.Equal(t, 1.0, f.Membership(peakLo), "%v at peak", f)
		assert.Equal(t, 1.0, f.Membership(peakHi), "%v at peak", f)
		assert.Equal(t, 1.0, f.Membership(peakLo+(peakHi-peakLo)/2), "%v inside peak", f)
	}
}

func TestMembershipContinuity(t *testing.T) {
	// Away from vertical edges the functions are Lipschitz with slope
	// 1/(shortest ramp).
	functions := []struct {
		f     Membership
		slope float64
	}{
		{Triangle{0, 2.5, 5}, 1 / 2.5},
		{Trapezoid{200, 500, 600, 800}, 1 / 200.0},
	}

	for _, tc := range functions {
		lo, hi := tc.f.Support()
		const steps = 5000
		h := (hi - lo + 2) / steps
		for i := 0; i < steps; i++ {
			x := lo - 1 + float64(i)*h
			diff := math.Abs(tc.f.Membership(x+h) - tc.f.Membership(x))
			require.LessOrEqual(t, diff, tc.slope*h+1e-12, "%v jumps at %v", tc.f, x)
		}
	}
}

func TestMembershipValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       Membership
		wantErr bool
	}{
		{name: "valid triangle", f: Triangle{0, 1, 2}},
		{name: "spike triangle", f: Triangle{1, 1, 1}},
		{name: "triangle out of order", f: Triangle{0, 3, 2}, wantErr: true},
		{name: "triangle a above b", f: Triangle{2, 1, 3}, wantErr: true},
		{name: "triangle NaN", f: Triangle{0, math.NaN(), 2}, wantErr: true},
		{name: "triangle Inf", f: Triangle{math.Inf(-1), 0, 2}, wantErr: true},
		{name: "valid trapezoid", f: Trapezoid{0, 1, 2, 3}},
		{name: "trapezoid out of order", f: Trapezoid{0, 2, 1, 3}, wantErr: true},
		{name: "trapezoid d below c", f: Trapezoid{0, 1, 3, 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrConfiguration))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVariableFuzzify(t *testing.T) {
	v, err := newVariable(VariableConfig{
		Name: "Input1",
		Min:  0,
		Max:  10,
		Terms: []Term{
			{Label: "Low", Function: Triangle{0, 2.5, 5}},
			{Label: "Medium", Function: Triangle{2.5, 5, 7.5}},
			{Label: "High", Function: Triangle{5, 7.5, 10}},
		},
	})
	require.NoError(t, err)

	d := v.Fuzzify(3.75)
	assert.InDelta(t, 0.5, d.Of("Low"), 1e-12)
	assert.InDelta(t, 0.5, d.Of("Medium"), 1e-12)
	assert.Zero(t, d.Of("High"))

	// Out of range values are not rejected.
	d = v.Fuzzify(42)
	assert.Zero(t, d.Of("Low")+d.Of("Medium")+d.Of("High"))

	assert.Panics(t, func() { d.Of("Missing") })
}

func TestNewVariableErrors(t *testing.T) {
	tri := Triangle{0, 1, 2}
	tests := []struct {
		name string
		cfg  VariableConfig
	}{
		{name: "empty name", cfg: VariableConfig{Min: 0, Max: 1, Terms: []Term{{"A", tri}}}},
		{name: "keyword name", cfg: VariableConfig{Name: "then", Min: 0, Max: 1, Terms: []Term{{"A", tri}}}},
		{name: "min equals max", cfg: VariableConfig{Name: "V", Min: 1, Max: 1, Terms: []Term{{"A", tri}}}},
		{name: "min above max", cfg: VariableConfig{Name: "V", Min: 2, Max: 1, Terms: []Term{{"A", tri}}}},
		{name: "infinite range", cfg: VariableConfig{Name: "V", Min: 0, Max: math.Inf(1), Terms: []Term{{"A", tri}}}},
		{name: "no terms", cfg: VariableConfig{Name: "V", Min: 0, Max: 1}},
		{name: "duplicate label", cfg: VariableConfig{Name: "V", Min: 0, Max: 1, Terms: []Term{{"A", tri}, {"A", tri}}}},
		{name: "bad label", cfg: VariableConfig{Name: "V", Min: 0, Max: 1, Terms: []Term{{"1A", tri}}}},
		{name: "nil function", cfg: VariableConfig{Name: "V", Min: 0, Max: 1, Terms: []Term{{"A", nil}}}},
		{name: "invalid function", cfg: VariableConfig{Name: "V", Min: 0, Max: 1, Terms: []Term{{"A", Triangle{2, 1, 0}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := newVariable(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, v)
			assert.Equal(t, errors.KindConfiguration, errors.KindOf(err))
		})
	}
}
