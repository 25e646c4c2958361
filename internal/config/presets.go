package config

import "sort"

// Presets are complete scenario configs selectable by name.
var Presets = map[string]*Config{
	"solar": {
		Scenario: "solar", IntervalMs: 1, StepSeconds: 1e4,
		Bodies: []BodyConfig{
			{Name: "Earth", Mass: 5.9726e24, Radius: 6378100, X: 149600000e3, VY: -108000e3 / 3600, Color: [3]float64{0, 0, 1}},
			{Name: "Moon", Mass: 0.07342e24, Radius: 1738100, X: 149600000e3 + 378000e3, VY: -108000e3/3600 - 1.022e3, Color: [3]float64{0.5, 0.5, 0.5}},
			{Name: "Sun", Mass: 1.989e30, Radius: 696000e3, Color: [3]float64{1, 1, 0}},
			{Name: "Mercury", Mass: 328.5e21, Radius: 2440e3, X: 57910000e3, VY: -47360, Color: [3]float64{238.0 / 256, 203.0 / 256, 173.0 / 256}},
			{Name: "Venus", Mass: 4.867e24, Radius: 6052e3, X: 108200000e3, VY: -35020, Color: [3]float64{0.8, 0.2, 0.2}},
			{Name: "Mars", Mass: 639e21, Radius: 3390e3, X: 227900000e3, VY: -24070, Color: [3]float64{1, 0, 0}},
		},
	},
	"earth_moon": {
		Scenario: "earth_moon", IntervalMs: 16, StepSeconds: 60,
		Bodies: []BodyConfig{
			{Name: "Earth", Mass: 5.9726e24, Radius: 6378100, Color: [3]float64{0, 0, 1}},
			{Name: "Moon", Mass: 0.07342e24, Radius: 1738100, X: 378000e3, VY: -1.022e3, Color: [3]float64{0.5, 0.5, 0.5}},
		},
	},
	"binary": {
		Scenario: "binary", IntervalMs: 16, StepSeconds: 1.0 / 60,
		Bodies: []BodyConfig{
			{Name: "a", Mass: 1e10, Radius: 0.5, Y: -3, Color: [3]float64{1, 0.5, 0}},
			{Name: "b", Mass: 1e10, Radius: 0.5, Y: 3, Color: [3]float64{0, 0.8, 1}},
		},
	},
	"binary_star": {
		Scenario: "binary_star", IntervalMs: 16, StepSeconds: 3600,
		Bodies: []BodyConfig{
			{Name: "A", Mass: 1e30, Radius: 7e8, X: -5e10, VY: -18267, Color: [3]float64{1, 0.9, 0.6}},
			{Name: "B", Mass: 1e30, Radius: 7e8, X: 5e10, VY: 18267, Color: [3]float64{0.6, 0.8, 1}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Bodies = append([]BodyConfig(nil), p.Bodies...)
	return &cfg
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
