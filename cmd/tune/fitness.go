package main

import (
	"math"

	"github.com/arfluid/sph/config"
	"github.com/arfluid/sph/fluid"
)

// blowupPenalty is returned when a run produces non-finite state.
const blowupPenalty = 1e9

// FitnessEvaluator runs short simulations and scores parameter vectors.
type FitnessEvaluator struct {
	params *ParamVector
	ticks  int
	base   *config.Config
}

// NewFitnessEvaluator creates an evaluator running each candidate for the
// given number of ticks from the deterministic initial layout.
func NewFitnessEvaluator(params *ParamVector, ticks int, base *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{params: params, ticks: ticks, base: base}
}

// Evaluate scores one raw parameter vector: the mean squared relative
// deviation of density from rest density after the run, plus a small
// kinetic-energy term so the optimizer prefers settled fluid over one
// bouncing between the walls. Lower is better.
func (e *FitnessEvaluator) Evaluate(raw []float64) float64 {
	// Config has no reference fields, so a shallow copy is a deep copy.
	cfg := *e.base
	e.params.Apply(&cfg, raw)

	sim, err := fluid.New(&cfg)
	if err != nil {
		return blowupPenalty
	}
	defer sim.Close()

	for i := 0; i < e.ticks; i++ {
		sim.Update(0)
	}

	rest := cfg.Fluid.RestDensity
	var sumSq float64
	densities := sim.Densities()
	for _, rho := range densities {
		d := (rho - rest) / rest
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return blowupPenalty
		}
		sumSq += d * d
	}
	fitness := sumSq / float64(len(densities))

	var kinetic float64
	mass := cfg.Fluid.ParticleMass
	for _, v := range sim.Velocities() {
		kinetic += 0.5 * mass * (v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	}
	if math.IsNaN(kinetic) || math.IsInf(kinetic, 0) {
		return blowupPenalty
	}

	return fitness + 0.01*kinetic
}
