package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"github.com/san-kum/gravsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// Defaults for a config that names nothing else.
const (
	DefaultScenario    = "solar"
	DefaultIntervalMs  = 16
	DefaultStepSeconds = sim.DefaultStepSeconds
)

// Config is the yaml form of a scenario and the settings it runs with.
type Config struct {
	Scenario      string       `yaml:"scenario"`
	IntervalMs    int          `yaml:"interval_ms"`
	StepSeconds   float64      `yaml:"step_seconds"`
	MinSeparation float64      `yaml:"min_separation,omitempty"`
	StopOnInvalid bool         `yaml:"stop_on_invalid,omitempty"`
	Bodies        []BodyConfig `yaml:"bodies,omitempty"`
}

// BodyConfig is one body of a Config in SI units.
type BodyConfig struct {
	Name   string     `yaml:"name"`
	Mass   float64    `yaml:"mass"`
	Radius float64    `yaml:"radius"`
	X      float64    `yaml:"x"`
	Y      float64    `yaml:"y"`
	VX     float64    `yaml:"vx"`
	VY     float64    `yaml:"vy"`
	Color  [3]float64 `yaml:"color,flow"`
}

// Body converts b to an engine body.
func (b BodyConfig) Body() dynamo.Body {
	return dynamo.Body{
		Name:   b.Name,
		Mass:   b.Mass,
		Radius: b.Radius,
		Pos:    r2.Vec{X: b.X, Y: b.Y},
		Vel:    r2.Vec{X: b.VX, Y: b.VY},
		Color:  dynamo.Color(b.Color),
	}
}

// DefaultConfig returns the default scenario without listing its bodies.
func DefaultConfig() *Config {
	return &Config{
		Scenario:    DefaultScenario,
		IntervalMs:  DefaultIntervalMs,
		StepSeconds: DefaultStepSeconds,
	}
}

// Load reads a yaml config from path. A file that lists no bodies is
// layered over the preset it names, so unset fields take the preset's
// values; otherwise it is layered over DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var head struct {
		Scenario string      `yaml:"scenario"`
		Bodies   []yaml.Node `yaml:"bodies"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if head.Scenario != "" {
		cfg.Scenario = head.Scenario
	}
	if preset := GetPreset(cfg.Scenario); preset != nil && len(head.Bodies) == 0 {
		cfg = preset
		cfg.Bodies = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as yaml.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate fails fast on anything that would make Start reject the config.
func (c *Config) Validate() error {
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if c.MinSeparation < 0 {
		return fmt.Errorf("min_separation %v must not be negative", c.MinSeparation)
	}
	_, err := c.GetBodies()
	return err
}

// GetBodies returns the configured bodies, or the bodies of the named
// scenario when none are listed.
func (c *Config) GetBodies() ([]dynamo.Body, error) {
	src := c.Bodies
	if len(src) == 0 {
		preset := GetPreset(c.Scenario)
		if preset == nil {
			return nil, fmt.Errorf("unknown scenario: %s (available: %v)", c.Scenario, ListPresets())
		}
		src = preset.Bodies
	}

	bodies := make([]dynamo.Body, len(src))
	for i, b := range src {
		bodies[i] = b.Body()
	}
	if err := dynamo.ValidateBodies(bodies); err != nil {
		return nil, err
	}
	return bodies, nil
}

// Settings returns the scheduler settings for c.
func (c *Config) Settings() sim.Settings {
	return sim.Settings{
		Interval:      time.Duration(c.IntervalMs) * time.Millisecond,
		StepSeconds:   c.StepSeconds,
		StopOnInvalid: c.StopOnInvalid,
	}
}

// EngineOptions returns the physics options c asks for.
func (c *Config) EngineOptions() []physics.Option {
	if c.MinSeparation > 0 {
		return []physics.Option{physics.WithMinSeparation(c.MinSeparation)}
	}
	return nil
}
