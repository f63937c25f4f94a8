package telemetry

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/arfluid/sph/config"
)

// FrameStats holds aggregated fluid statistics sampled at one tick.
type FrameStats struct {
	Tick      int64   `csv:"tick"`
	SimTime   float64 `csv:"sim_time"`
	Particles int     `csv:"particles"`

	// Density field health; the mean settling near rest density is the
	// first thing to check when a run misbehaves.
	DensityMean float64 `csv:"density_mean"`
	DensityMin  float64 `csv:"density_min"`
	DensityMax  float64 `csv:"density_max"`

	PressureMean float64 `csv:"pressure_mean"`

	// Motion
	KineticEnergy float64 `csv:"kinetic_energy"`
	MaxSpeed      float64 `csv:"max_speed"`

	BoundaryContacts int `csv:"boundary_contacts"`
}

// ComputeFrameStats aggregates a telemetry record from state snapshots.
// The pressure mean is derived from the density mean through the linear EOS
// rather than sampled, which is exact because the EOS is affine.
func ComputeFrameStats(cfg *config.Config, tick int64, velocities []r3.Vec, densities []float64, contacts int) FrameStats {
	fs := FrameStats{
		Tick:             tick,
		SimTime:          float64(tick) * cfg.Fluid.TimeStep,
		Particles:        len(densities),
		BoundaryContacts: contacts,
	}
	if len(densities) == 0 {
		return fs
	}

	fs.DensityMean = stat.Mean(densities, nil)
	fs.DensityMin = floats.Min(densities)
	fs.DensityMax = floats.Max(densities)
	fs.PressureMean = cfg.Fluid.GasConstant * (fs.DensityMean - cfg.Fluid.RestDensity)

	mass := cfg.Fluid.ParticleMass
	for _, v := range velocities {
		speedSq := r3.Norm2(v)
		fs.KineticEnergy += 0.5 * mass * speedSq
		if speed := math.Sqrt(speedSq); speed > fs.MaxSpeed {
			fs.MaxSpeed = speed
		}
	}

	return fs
}

// LogStats logs the frame stats using slog.
func (s FrameStats) LogStats() {
	slog.Info("stats",
		"tick", s.Tick,
		"sim_time", s.SimTime,
		"particles", s.Particles,
		"density_mean", s.DensityMean,
		"density_min", s.DensityMin,
		"density_max", s.DensityMax,
		"pressure_mean", s.PressureMean,
		"kinetic_energy", s.KineticEnergy,
		"max_speed", s.MaxSpeed,
		"boundary_contacts", s.BoundaryContacts,
	)
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tick", s.Tick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("particles", s.Particles),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_min", s.DensityMin),
		slog.Float64("density_max", s.DensityMax),
		slog.Float64("pressure_mean", s.PressureMean),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Int("boundary_contacts", s.BoundaryContacts),
	)
}
