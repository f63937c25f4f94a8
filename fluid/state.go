package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// buffers holds the particle state as structure-of-arrays slices indexed by
// stable particle index. Stages write only the slot owned by the particle
// they are processing; posNext/velNext are the integration output buffers,
// swapped in at the stage boundary so a fault mid-stage never exposes a
// partially-updated tick.
type buffers struct {
	pos     []r3.Vec
	vel     []r3.Vec
	posNext []r3.Vec
	velNext []r3.Vec

	force   []r3.Vec // accumulated pressure+viscosity+gravity per tick
	impulse []r3.Vec // external force sum per tick, applied dt-scaled to velocity

	mass     []float64 // constant after creation
	density  []float64 // recomputed every tick
	pressure []float64 // recomputed every tick
}

func newBuffers(n int, mass float64) *buffers {
	b := &buffers{
		pos:      make([]r3.Vec, n),
		vel:      make([]r3.Vec, n),
		posNext:  make([]r3.Vec, n),
		velNext:  make([]r3.Vec, n),
		force:    make([]r3.Vec, n),
		impulse:  make([]r3.Vec, n),
		mass:     make([]float64, n),
		density:  make([]float64, n),
		pressure: make([]float64, n),
	}
	for i := range b.mass {
		b.mass[i] = mass
	}
	return b
}

// cubeSide returns the largest side length whose cube does not exceed n.
// A requested count that is not a perfect cube is truncated to side³ fewer
// particles; that is documented behavior, not an error.
func cubeSide(n int) int {
	side := int(math.Cbrt(float64(n)))
	// Cbrt of a perfect cube can land just below the integer root.
	for (side+1)*(side+1)*(side+1) <= n {
		side++
	}
	if side < 1 {
		side = 1
	}
	return side
}

// seedGrid lays the particles out in a cube centered on the origin, lifted
// half a unit up so the block falls and settles. Positions are a pure
// function of particle index; velocities and per-tick fields are zeroed.
func (b *buffers) seedGrid(h float64) {
	side := cubeSide(len(b.pos))
	spacing := 0.8 * h
	half := float64(side) / 2

	idx := 0
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			for k := 0; k < side; k++ {
				b.pos[idx] = r3.Vec{
					X: (float64(i) - half) * spacing,
					Y: (float64(j)-half)*spacing + 0.5,
					Z: (float64(k) - half) * spacing,
				}
				idx++
			}
		}
	}

	zero := r3.Vec{}
	for i := range b.vel {
		b.vel[i] = zero
		b.posNext[i] = zero
		b.velNext[i] = zero
		b.force[i] = zero
		b.impulse[i] = zero
		b.density[i] = 0
		b.pressure[i] = 0
	}
}
