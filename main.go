package main

import (
	"flag"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arfluid/sph/config"
	"github.com/arfluid/sph/fluid"
	"github.com/arfluid/sph/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	stir := flag.Bool("stir", false, "Apply a scripted orbiting force, standing in for an interaction source")
	stirForce := flag.Float64("stir-force", 50.0, "Stir force magnitude")
	stirRadius := flag.Float64("stir-radius", 0.15, "Stir influence radius")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Use config stats window if not overridden by CLI
	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}
	statsEvery := int64(statsWindowSec / cfg.Fluid.TimeStep)
	if statsEvery < 1 {
		statsEvery = 1
	}

	sim, err := fluid.New(cfg)
	if err != nil {
		slog.Error("failed to create simulator", "error", err)
		os.Exit(1)
	}
	defer sim.Close()

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	sim.SetPerfCollector(perf)

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
		os.Exit(1)
	}

	slog.Info("starting simulation",
		"particles", sim.NumParticles(),
		"requested", cfg.Fluid.NumParticles,
		"time_step", cfg.Fluid.TimeStep,
		"max_ticks", *maxTicks,
		"stir", *stir,
	)

	for {
		if *stir {
			applyStir(sim, cfg, *stirRadius, *stirForce)
		}

		sim.Update(0)
		tick := sim.Tick()

		if tick%statsEvery == 0 {
			stats := telemetry.ComputeFrameStats(cfg, tick, sim.Velocities(), sim.Densities(), sim.BoundaryContacts())
			if *logStats {
				stats.LogStats()
				perf.Stats().LogStats()
			}
			if err := out.WriteFrame(stats); err != nil {
				slog.Error("failed to write frame stats", "error", err)
				os.Exit(1)
			}
			if err := out.WritePerf(perf.Stats(), tick); err != nil {
				slog.Error("failed to write perf stats", "error", err)
				os.Exit(1)
			}
		}

		if *maxTicks > 0 && tick >= int64(*maxTicks) {
			slog.Info("max ticks reached", "tick", tick)
			return
		}
	}
}

// applyStir queues a force whose center orbits the middle of the domain,
// driving the fluid the way the upstream interaction subsystem would.
func applyStir(sim *fluid.Simulator, cfg *config.Config, radius, magnitude float64) {
	bmin, bmax := cfg.Derived.Min, cfg.Derived.Max
	center := r3.Scale(0.5, r3.Add(bmin, bmax))
	orbitR := 0.25 * (bmax.X - bmin.X)

	angle := float64(sim.Tick()) * cfg.Fluid.TimeStep * math.Pi // half a revolution per second
	pos := r3.Vec{
		X: center.X + orbitR*math.Cos(angle),
		Y: center.Y,
		Z: center.Z + orbitR*math.Sin(angle),
	}
	// Push tangentially to keep the fluid circulating.
	force := r3.Vec{
		X: -magnitude * math.Sin(angle),
		Y: 0,
		Z: magnitude * math.Cos(angle),
	}

	sim.AddExternalForce(pos, radius, force)
}
