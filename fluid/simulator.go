package fluid

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/arfluid/sph/config"
	"github.com/arfluid/sph/telemetry"
)

// State reports whether the simulator is between ticks or mid-pipeline.
type State int32

const (
	StateIdle State = iota
	StateTicking
)

// ForceRequest is one queued external force: a center, an influence radius,
// and the force vector applied with linear falloff inside that radius.
// Requests are consumed by exactly one tick and then discarded.
type ForceRequest struct {
	Center r3.Vec
	Radius float64
	Force  r3.Vec
}

// Simulator owns the particle buffers and orchestrates the per-tick
// pipeline: spatial index rebuild, density/pressure, forces, integration.
// It is the only type other subsystems talk to.
//
// Update and Reset are mutually exclusive and non-reentrant; a tick runs to
// completion before the next may start. AddExternalForce and the snapshot
// accessors are safe to call from other goroutines at any time.
type Simulator struct {
	cfg  *config.Config
	kern Kernels
	grid *SpatialIndex
	buf  *buffers
	pool *workerPool

	// mu serializes Update/Reset and snapshot reads, so a reader never
	// observes mid-tick state.
	mu    sync.Mutex
	state atomic.Int32
	tick  int64

	// queueMu guards the external force queue; the queue is append-only
	// until Update drains it at the next tick boundary.
	queueMu sync.Mutex
	queue   []ForceRequest
	pending []ForceRequest // drained requests for the tick in progress

	contacts int // boundary contacts during the last tick

	perf *telemetry.PerfCollector // optional, nil disables phase timing
}

// New creates a simulator from the given configuration. The configuration is
// validated up front and is immutable for the simulator's lifetime; invalid
// values fail construction. Particles are seeded in the deterministic
// cubic-grid layout.
func New(cfg *config.Config) (*Simulator, error) {
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	side := cubeSide(cfg.Fluid.NumParticles)
	count := side * side * side

	s := &Simulator{
		cfg:  cfg,
		kern: NewKernels(cfg.Fluid.SmoothingRadius),
		grid: NewSpatialIndex(cfg.Derived.CellSize),
		buf:  newBuffers(count, cfg.Fluid.ParticleMass),
		pool: newWorkerPool(),
	}
	s.buf.seedGrid(cfg.Fluid.SmoothingRadius)
	return s, nil
}

// NumParticles returns the particle count after cubic-grid truncation.
func (s *Simulator) NumParticles() int {
	return len(s.buf.pos)
}

// Tick returns the number of completed updates since the last reset.
func (s *Simulator) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// State returns StateTicking while a pipeline run is in progress.
func (s *Simulator) State() State {
	return State(s.state.Load())
}

// SetPerfCollector attaches a collector that receives per-stage timings.
// Call before the first Update; nil disables collection.
func (s *Simulator) SetPerfCollector(pc *telemetry.PerfCollector) {
	s.perf = pc
}

// Update advances the simulation by one tick. A dt <= 0 uses the configured
// time step; a positive dt overrides it for this tick only. The four-stage
// pipeline runs atomically: snapshot readers block until it completes.
func (s *Simulator) Update(dt float64) {
	if dt <= 0 {
		dt = s.cfg.Fluid.TimeStep
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Store(int32(StateTicking))
	defer s.state.Store(int32(StateIdle))

	// Drain queued external forces; each request is consumed exactly once.
	s.queueMu.Lock()
	s.pending = append(s.pending[:0], s.queue...)
	s.queue = s.queue[:0]
	s.queueMu.Unlock()

	for i := range s.pool.scratches {
		s.pool.scratches[i].contacts = 0
	}

	n := len(s.buf.pos)
	if s.perf != nil {
		s.perf.StartTick()
		s.perf.StartPhase(telemetry.PhaseGrid)
	}

	// Rebuild runs single-threaded so bucket order stays a pure function
	// of particle index.
	s.grid.Rebuild(s.buf.pos)

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseDensity)
	}
	s.runStage(stageDensity, n, dt)

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseForces)
	}
	s.runStage(stageForces, n, dt)

	if s.perf != nil {
		s.perf.StartPhase(telemetry.PhaseIntegrate)
	}
	s.runStage(stageIntegrate, n, dt)

	// Commit the integration outputs. The swap is the stage boundary:
	// before it, pos/vel still hold the previous tick everywhere.
	s.buf.pos, s.buf.posNext = s.buf.posNext, s.buf.pos
	s.buf.vel, s.buf.velNext = s.buf.velNext, s.buf.vel

	s.contacts = 0
	for i := range s.pool.scratches {
		s.contacts += s.pool.scratches[i].contacts
	}

	s.tick++
	if s.perf != nil {
		s.perf.EndTick()
	}
}

// AddExternalForce enqueues a force applied around center with linear
// falloff out to radius. The request takes effect at the next tick boundary;
// it is safe to call while a tick is in flight. Requests with a non-positive
// radius influence no particles and are dropped.
func (s *Simulator) AddExternalForce(center r3.Vec, radius float64, force r3.Vec) {
	if radius <= 0 {
		return
	}
	s.queueMu.Lock()
	s.queue = append(s.queue, ForceRequest{Center: center, Radius: radius, Force: force})
	s.queueMu.Unlock()
}

// Positions returns a snapshot copy of all particle positions, never a live
// view into simulation state.
func (s *Simulator) Positions() []r3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]r3.Vec, len(s.buf.pos))
	copy(out, s.buf.pos)
	return out
}

// Velocities returns a snapshot copy of all particle velocities.
func (s *Simulator) Velocities() []r3.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]r3.Vec, len(s.buf.vel))
	copy(out, s.buf.vel)
	return out
}

// Densities returns a snapshot copy of all particle densities as of the last
// completed tick.
func (s *Simulator) Densities() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.buf.density))
	copy(out, s.buf.density)
	return out
}

// BoundaryContacts returns how many axis clamps the last tick resolved.
func (s *Simulator) BoundaryContacts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts
}

// Reset reinitializes the cubic-grid layout from configuration. The layout
// is a pure function of particle index, so two resets produce identical
// state. Pending external force requests are discarded.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.seedGrid(s.cfg.Fluid.SmoothingRadius)
	s.tick = 0
	s.contacts = 0

	s.queueMu.Lock()
	s.queue = s.queue[:0]
	s.queueMu.Unlock()
}

// Close stops the worker pool. The simulator must not be used afterwards.
func (s *Simulator) Close() {
	s.pool.stop()
}
