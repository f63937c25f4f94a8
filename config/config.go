// Package config provides configuration loading and validation for the
// fluid simulation.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by all validation failures.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Fluid     FluidConfig     `yaml:"fluid"`
	Bounds    BoundsConfig    `yaml:"bounds"`
	Grid      GridConfig      `yaml:"grid"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// FluidConfig holds the SPH fluid parameters.
type FluidConfig struct {
	NumParticles    int        `yaml:"num_particles"`
	ParticleMass    float64    `yaml:"particle_mass"`
	RestDensity     float64    `yaml:"rest_density"`
	GasConstant     float64    `yaml:"gas_constant"` // EOS stiffness
	Viscosity       float64    `yaml:"viscosity"`
	Gravity         [3]float64 `yaml:"gravity"`
	SmoothingRadius float64    `yaml:"smoothing_radius"` // kernel cutoff h
	TimeStep        float64    `yaml:"time_step"`
	Damping         float64    `yaml:"damping"` // velocity retained per tick, (0,1]
}

// BoundsConfig holds the simulation domain box and collision response.
type BoundsConfig struct {
	Min         [3]float64 `yaml:"min"`
	Max         [3]float64 `yaml:"max"`
	Restitution float64    `yaml:"restitution"` // velocity fraction kept on reflection, [0,1]
}

// GridConfig holds spatial index parameters.
type GridConfig struct {
	CellSize float64 `yaml:"cell_size"` // 0 = use smoothing radius
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // seconds of sim time per stats record
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	H2       float64 // SmoothingRadius squared
	CellSize float64 // effective grid cell size (>= smoothing radius)
	Gravity  r3.Vec  // Fluid.Gravity as a vector
	Min      r3.Vec  // Bounds.Min as a vector
	Max      r3.Vec  // Bounds.Max as a vector
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. Unknown keys and
// out-of-range values are rejected.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := decodeStrict(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Decode into same struct - only overwrites fields present in file
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Finalize validates the config and computes derived values. It is called by
// Load and must be called on any Config assembled in code before use.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// decodeStrict unmarshals YAML rejecting keys that have no destination field.
func decodeStrict(data []byte, out *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Validate checks every recognized option against its allowed range.
// Construction of a simulator must not succeed with an invalid config.
func (c *Config) Validate() error {
	f := &c.Fluid
	if f.NumParticles < 1 {
		return fmt.Errorf("%w: fluid.num_particles must be >= 1, got %d", ErrInvalid, f.NumParticles)
	}
	if f.ParticleMass <= 0 {
		return fmt.Errorf("%w: fluid.particle_mass must be > 0, got %g", ErrInvalid, f.ParticleMass)
	}
	if f.SmoothingRadius <= 0 {
		return fmt.Errorf("%w: fluid.smoothing_radius must be > 0, got %g", ErrInvalid, f.SmoothingRadius)
	}
	if f.TimeStep <= 0 {
		return fmt.Errorf("%w: fluid.time_step must be > 0, got %g", ErrInvalid, f.TimeStep)
	}
	if f.Damping <= 0 || f.Damping > 1 {
		return fmt.Errorf("%w: fluid.damping must be in (0,1], got %g", ErrInvalid, f.Damping)
	}
	for axis := 0; axis < 3; axis++ {
		if c.Bounds.Min[axis] >= c.Bounds.Max[axis] {
			return fmt.Errorf("%w: bounds axis %d has min %g >= max %g",
				ErrInvalid, axis, c.Bounds.Min[axis], c.Bounds.Max[axis])
		}
	}
	if c.Bounds.Restitution < 0 || c.Bounds.Restitution > 1 {
		return fmt.Errorf("%w: bounds.restitution must be in [0,1], got %g", ErrInvalid, c.Bounds.Restitution)
	}
	if c.Grid.CellSize != 0 && c.Grid.CellSize < f.SmoothingRadius {
		return fmt.Errorf("%w: grid.cell_size %g is smaller than smoothing_radius %g",
			ErrInvalid, c.Grid.CellSize, f.SmoothingRadius)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	h := c.Fluid.SmoothingRadius
	c.Derived.H2 = h * h

	// Cell size defaults to h; any value >= h keeps the 27-cell
	// neighborhood guarantee.
	c.Derived.CellSize = c.Grid.CellSize
	if c.Derived.CellSize == 0 {
		c.Derived.CellSize = h
	}

	c.Derived.Gravity = r3.Vec{X: c.Fluid.Gravity[0], Y: c.Fluid.Gravity[1], Z: c.Fluid.Gravity[2]}
	c.Derived.Min = r3.Vec{X: c.Bounds.Min[0], Y: c.Bounds.Min[1], Z: c.Bounds.Min[2]}
	c.Derived.Max = r3.Vec{X: c.Bounds.Max[0], Y: c.Bounds.Max[1], Z: c.Bounds.Max[2]}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
