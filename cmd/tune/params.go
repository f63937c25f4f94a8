// Package main tunes fluid parameters toward a density field that settles at
// rest density, by minimizing over short headless runs.
package main

import (
	"github.com/arfluid/sph/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "gas_constant", Min: 500, Max: 8000, Default: 2000},
			{Name: "viscosity", Min: 0.05, Max: 5.0, Default: 0.5},
			{Name: "damping", Min: 0.80, Max: 1.0, Default: 0.95},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values, clamping
// out-of-range proposals so every evaluation sees a valid config.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		x := normalized[i]
		if x < 0 {
			x = 0
		} else if x > 1 {
			x = 1
		}
		raw[i] = spec.Min + x*(spec.Max-spec.Min)
	}
	return raw
}

// Apply writes raw parameter values into a config.
func (pv *ParamVector) Apply(cfg *config.Config, raw []float64) {
	cfg.Fluid.GasConstant = raw[0]
	cfg.Fluid.Viscosity = raw[1]
	cfg.Fluid.Damping = raw[2]
}
