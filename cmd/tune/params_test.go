package main

import (
	"math"
	"testing"

	"github.com/arfluid/sph/config"
)

func TestParamVector_NormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()

	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-9 {
			t.Errorf("param %s: round trip %v -> %v", pv.Specs[i].Name, raw[i], back[i])
		}
	}
}

func TestParamVector_DenormalizeClamps(t *testing.T) {
	pv := NewParamVector()

	low := pv.Denormalize([]float64{-0.5, -0.5, -0.5})
	high := pv.Denormalize([]float64{1.5, 1.5, 1.5})

	for i, spec := range pv.Specs {
		if low[i] != spec.Min {
			t.Errorf("param %s: below-range proposal gave %v, want clamped to %v", spec.Name, low[i], spec.Min)
		}
		if high[i] != spec.Max {
			t.Errorf("param %s: above-range proposal gave %v, want clamped to %v", spec.Name, high[i], spec.Max)
		}
	}
}

func TestParamVector_Apply(t *testing.T) {
	pv := NewParamVector()
	cfg := &config.Config{}

	pv.Apply(cfg, []float64{3000, 1.5, 0.9})

	if cfg.Fluid.GasConstant != 3000 {
		t.Errorf("GasConstant = %v, want 3000", cfg.Fluid.GasConstant)
	}
	if cfg.Fluid.Viscosity != 1.5 {
		t.Errorf("Viscosity = %v, want 1.5", cfg.Fluid.Viscosity)
	}
	if cfg.Fluid.Damping != 0.9 {
		t.Errorf("Damping = %v, want 0.9", cfg.Fluid.Damping)
	}
}

func TestFitnessEvaluator_PenalizesBlowup(t *testing.T) {
	base, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	base.Fluid.NumParticles = 27 // keep evaluations fast

	pv := NewParamVector()
	ev := NewFitnessEvaluator(pv, 20, base)

	settled := ev.Evaluate(pv.DefaultVector())
	if math.IsNaN(settled) || settled >= blowupPenalty {
		t.Errorf("default parameters scored %v, want finite fitness below the penalty", settled)
	}

	// An invalid damping is rejected at construction and must score the
	// penalty instead of crashing the optimizer.
	bad := ev.Evaluate([]float64{2000, 0.5, 2.0})
	if bad != blowupPenalty {
		t.Errorf("invalid parameters scored %v, want %v", bad, blowupPenalty)
	}
}
