package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// densityFloor is a defensive lower bound when dividing by density. The
// self-term of the density sum keeps density strictly positive, so this
// should never trigger in practice.
const densityFloor = 1e-12

// densityChunk computes density and pressure for particles [i0, i1).
// It reads only positions, which are frozen for the whole stage, and writes
// only the density/pressure slots owned by each particle. Every density must
// be finalized before any force computation runs; the stage barrier in
// runStage enforces that ordering.
func (s *Simulator) densityChunk(i0, i1 int, sc *scratch) {
	b := s.buf
	h2 := s.kern.H2
	gasConstant := s.cfg.Fluid.GasConstant
	restDensity := s.cfg.Fluid.RestDensity

	for i := i0; i < i1; i++ {
		p := b.pos[i]
		sc.neighbors = s.grid.QueryInto(sc.neighbors[:0], p, s.kern.H)

		// The candidate set includes the particle itself; its self-term
		// (mass × kernel at zero distance) keeps the sum strictly positive.
		var rho float64
		for _, j := range sc.neighbors {
			d := r3.Sub(p, b.pos[j])
			r2 := r3.Norm2(d)
			if r2 < h2 {
				rho += b.mass[j] * s.kern.Poly6(r2)
			}
		}

		b.density[i] = rho
		// Linear EOS; pressure below rest density goes negative (tensile)
		// by design, never clamped.
		b.pressure[i] = gasConstant * (rho - restDensity)
	}
}

// forceChunk accumulates pressure, viscosity, and gravity forces for
// particles [i0, i1), and evaluates the tick's queued external force
// requests into the impulse buffer. It reads positions, velocities,
// densities, and pressures frozen by the previous barrier.
func (s *Simulator) forceChunk(i0, i1 int, sc *scratch) {
	b := s.buf
	h2 := s.kern.H2
	viscosity := s.cfg.Fluid.Viscosity
	gravity := s.cfg.Derived.Gravity

	for i := i0; i < i1; i++ {
		p := b.pos[i]
		pi := b.pressure[i]
		vi := b.vel[i]
		sc.neighbors = s.grid.QueryInto(sc.neighbors[:0], p, s.kern.H)

		var pressureForce, viscosityForce r3.Vec
		for _, j := range sc.neighbors {
			if int(j) == i {
				continue
			}
			rVec := r3.Sub(p, b.pos[j])
			r2 := r3.Norm2(rVec)
			if r2 >= h2 {
				continue
			}
			r := math.Sqrt(r2)

			// Pressure term normalizes by the neighbor's density only.
			// Not the symmetric textbook form; the dynamics depend on it.
			grad := s.kern.SpikyGrad(rVec, r)
			pressureForce = r3.Add(pressureForce,
				r3.Scale(-b.mass[j]*(pi+b.pressure[j])/(2*b.density[j]), grad))

			dv := r3.Sub(b.vel[j], vi)
			viscosityForce = r3.Add(viscosityForce,
				r3.Scale(viscosity*b.mass[j]*s.kern.ViscLap(r)/b.density[j], dv))
		}

		bodyForce := r3.Scale(b.density[i], gravity)
		b.force[i] = r3.Add(r3.Add(pressureForce, viscosityForce), bodyForce)

		// External impulses stay outside the accumulated force: they are
		// added straight to velocity at integration time, dt-scaled,
		// bypassing the density-normalized acceleration path.
		var imp r3.Vec
		for _, req := range s.pending {
			d := r3.Norm(r3.Sub(p, req.Center))
			if d < req.Radius {
				imp = r3.Add(imp, r3.Scale(1.0-d/req.Radius, req.Force))
			}
		}
		b.impulse[i] = imp
	}
}

// integrateChunk advances velocity and position for particles [i0, i1) with
// semi-implicit Euler and resolves boundary collisions. Outputs go to the
// posNext/velNext buffers, committed by a swap once the whole stage is done.
func (s *Simulator) integrateChunk(i0, i1 int, dt float64, sc *scratch) {
	b := s.buf
	damping := s.cfg.Fluid.Damping
	restitution := s.cfg.Bounds.Restitution
	bmin := s.cfg.Derived.Min
	bmax := s.cfg.Derived.Max

	for i := i0; i < i1; i++ {
		rho := b.density[i]
		if rho < densityFloor {
			rho = densityFloor
		}

		acc := r3.Scale(1/rho, b.force[i])
		v := r3.Add(b.vel[i], r3.Scale(dt, acc))
		v = r3.Scale(damping, v)
		v = r3.Add(v, r3.Scale(dt, b.impulse[i]))
		p := r3.Add(b.pos[i], r3.Scale(dt, v))

		// Clamp-then-reflect, per axis. The ordering is load-bearing for
		// reproducibility on multi-axis violations; do not reorder.
		if p.X < bmin.X {
			p.X = bmin.X
			v.X *= -restitution
			sc.contacts++
		} else if p.X > bmax.X {
			p.X = bmax.X
			v.X *= -restitution
			sc.contacts++
		}
		if p.Y < bmin.Y {
			p.Y = bmin.Y
			v.Y *= -restitution
			sc.contacts++
		} else if p.Y > bmax.Y {
			p.Y = bmax.Y
			v.Y *= -restitution
			sc.contacts++
		}
		if p.Z < bmin.Z {
			p.Z = bmin.Z
			v.Z *= -restitution
			sc.contacts++
		} else if p.Z > bmax.Z {
			p.Z = bmax.Z
			v.Z *= -restitution
			sc.contacts++
		}

		b.velNext[i] = v
		b.posNext[i] = p
	}
}
