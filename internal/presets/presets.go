// Package presets holds the ready-made inference systems served by the
// service and the CLI, along with their reference test vectors.
package presets

import (
	"sort"

	"github.com/copyleftdev/fuzzopt/internal/errors"
	"github.com/copyleftdev/fuzzopt/internal/fuzzy"
)

const (
	// AssistiveCare names the temperature and light controller.
	AssistiveCare = "AssistiveCareFLC"
	// Comparative names the two-input system used to compare optimizers.
	Comparative = "OptimizationFIS"
)

// Preset couples an engine definition with the output an optimizer should
// minimize and the inputs worth checking by hand.
type Preset struct {
	Name        string
	Description string
	// Objective is the output minimized by default.
	Objective   string
	Config      func(resolution int) fuzzy.Config
	TestVectors [][]float64
}

var registry = map[string]Preset{
	AssistiveCare: {
		Name:        AssistiveCare,
		Description: "Assistive care controller: heater and lights from temperature and light level",
		Objective:   "Heater",
		Config:      AssistiveCareConfig,
		TestVectors: [][]float64{{10, 100}, {20, 600}, {30, 900}},
	},
	Comparative: {
		Name:        Comparative,
		Description: "Two-input, one-output system used to compare differential evolution and the genetic algorithm",
		Objective:   "Output",
		Config:      ComparativeConfig,
		TestVectors: [][]float64{{1, 2}, {5, 6}, {8, 9}},
	},
}

// Names returns the preset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named preset.
func Lookup(name string) (Preset, error) {
	p, ok := registry[name]
	if !ok {
		return Preset{}, errors.Errorf(errors.KindNotFound, "unknown engine %q", name)
	}
	return p, nil
}

// Build constructs the named engine at the given defuzzifier resolution.
// A resolution of 0 selects fuzzy.DefaultResolution.
func Build(name string, resolution int) (*fuzzy.Engine, error) {
	p, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return fuzzy.NewEngine(p.Config(resolution))
}

// MustBuild is Build for presets known to be valid; it panics otherwise.
func MustBuild(name string, resolution int) *fuzzy.Engine {
	e, err := Build(name, resolution)
	if err != nil {
		panic(err)
	}
	return e
}

func centroid(resolution int) fuzzy.Defuzzifier {
	if resolution == 0 {
		resolution = fuzzy.DefaultResolution
	}
	return fuzzy.Centroid{Resolution: resolution}
}

func maxMinBlock(rules ...string) fuzzy.RuleBlockConfig {
	return fuzzy.RuleBlockConfig{
		Conjunction: fuzzy.Minimum{},
		Disjunction: fuzzy.Maximum{},
		Implication: fuzzy.Minimum{},
		Activation:  fuzzy.General{},
		Rules:       rules,
	}
}

// AssistiveCareConfig is the controller that drives a heater from the room
// temperature and the lights from the ambient light level.
func AssistiveCareConfig(resolution int) fuzzy.Config {
	level := func(name, low, mid, high string) fuzzy.OutputConfig {
		return fuzzy.OutputConfig{
			VariableConfig: fuzzy.VariableConfig{
				Name: name,
				Min:  0,
				Max:  100,
				Terms: []fuzzy.Term{
					{Label: low, Function: fuzzy.Triangle{A: 0, B: 0, C: 25}},
					{Label: mid, Function: fuzzy.Triangle{A: 15, B: 50, C: 85}},
					{Label: high, Function: fuzzy.Triangle{A: 75, B: 100, C: 100}},
				},
			},
			Aggregation: fuzzy.Maximum{},
			Defuzzifier: centroid(resolution),
		}
	}

	return fuzzy.Config{
		Name: AssistiveCare,
		Inputs: []fuzzy.VariableConfig{
			{
				Name: "Temperature",
				Min:  0,
				Max:  40,
				Terms: []fuzzy.Term{
					{Label: "Cold", Function: fuzzy.Trapezoid{A: 0, B: 0, C: 10, D: 15}},
					{Label: "Comfortable", Function: fuzzy.Triangle{A: 15, B: 20, C: 25}},
					{Label: "Hot", Function: fuzzy.Trapezoid{A: 25, B: 30, C: 40, D: 40}},
				},
			},
			{
				Name: "Light_Level",
				Min:  0,
				Max:  1000,
				Terms: []fuzzy.Term{
					{Label: "Dark", Function: fuzzy.Trapezoid{A: 0, B: 0, C: 100, D: 300}},
					{Label: "Medium", Function: fuzzy.Triangle{A: 200, B: 500, C: 800}},
					{Label: "Bright", Function: fuzzy.Trapezoid{A: 600, B: 900, C: 1000, D: 1000}},
				},
			},
		},
		Outputs: []fuzzy.OutputConfig{
			level("Heater", "Off", "Low", "High"),
			level("Lights", "Dim", "Moderate", "Bright"),
		},
		RuleBlocks: []fuzzy.RuleBlockConfig{maxMinBlock(
			"if Temperature is Cold then Heater is High",
			"if Temperature is Comfortable then Heater is Off",
			"if Temperature is Hot then Heater is Off",
			"if Light_Level is Dark then Lights is Bright",
			"if Light_Level is Medium then Lights is Moderate",
			"if Light_Level is Bright then Lights is Dim",
		)},
	}
}

// ComparativeConfig is the two-input system whose single output the
// optimizers minimize.
func ComparativeConfig(resolution int) fuzzy.Config {
	lmh := func(name string, max float64) fuzzy.VariableConfig {
		q := max / 4
		return fuzzy.VariableConfig{
			Name: name,
			Min:  0,
			Max:  max,
			Terms: []fuzzy.Term{
				{Label: "Low", Function: fuzzy.Triangle{A: 0, B: q, C: 2 * q}},
				{Label: "Medium", Function: fuzzy.Triangle{A: q, B: 2 * q, C: 3 * q}},
				{Label: "High", Function: fuzzy.Triangle{A: 2 * q, B: 3 * q, C: max}},
			},
		}
	}

	return fuzzy.Config{
		Name:   Comparative,
		Inputs: []fuzzy.VariableConfig{lmh("Input1", 10), lmh("Input2", 10)},
		Outputs: []fuzzy.OutputConfig{{
			VariableConfig: lmh("Output", 100),
			Aggregation:    fuzzy.Maximum{},
			Defuzzifier:    centroid(resolution),
		}},
		RuleBlocks: []fuzzy.RuleBlockConfig{maxMinBlock(
			"if Input1 is Low and Input2 is Low then Output is Low",
			"if Input1 is Medium or Input2 is Medium then Output is Medium",
			"if Input1 is High and Input2 is High then Output is High",
		)},
	}
}
