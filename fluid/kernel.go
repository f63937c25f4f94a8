// Package fluid implements a weakly-compressible SPH particle simulation:
// density/pressure estimation over smoothing kernels, pressure and viscosity
// forces, semi-implicit Euler integration, and boundary containment.
package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// coincidentEps is the separation below which two particles are treated as
// coincident; the gradient contribution is zero instead of blowing up.
const coincidentEps = 1e-6

// Kernels holds the smoothing kernels for one smoothing radius, with
// normalization constants precomputed once.
//
// Poly6 weights density sums, the spiky gradient drives pressure forces, and
// the viscosity Laplacian drives viscous damping. All three are stateless and
// side-effect free.
type Kernels struct {
	H  float64 // smoothing radius
	H2 float64 // H squared

	poly6Const float64 // 315 / (64π h⁹)
	spikyConst float64 // -45 / (π h⁶)
	viscConst  float64 // 45 / (π h⁶)
}

// NewKernels precomputes kernel constants for the given smoothing radius.
// The radius must be positive; config validation enforces this upstream.
func NewKernels(h float64) Kernels {
	h3 := h * h * h
	h6 := h3 * h3
	h9 := h6 * h3
	return Kernels{
		H:          h,
		H2:         h * h,
		poly6Const: 315.0 / (64.0 * math.Pi * h9),
		spikyConst: -45.0 / (math.Pi * h6),
		viscConst:  45.0 / (math.Pi * h6),
	}
}

// Poly6 returns the density kernel value for a squared distance r2.
// Zero outside the smoothing radius.
func (k Kernels) Poly6(r2 float64) float64 {
	if r2 >= k.H2 {
		return 0
	}
	diff := k.H2 - r2
	return k.poly6Const * diff * diff * diff
}

// SpikyGrad returns the spiky kernel gradient for the separation vector rVec
// with length r. Returns the zero vector outside the smoothing radius and for
// near-coincident particles, where the r_vec/r direction is undefined.
func (k Kernels) SpikyGrad(rVec r3.Vec, r float64) r3.Vec {
	if r >= k.H || r < coincidentEps {
		return r3.Vec{}
	}
	diff := k.H - r
	return r3.Scale(k.spikyConst*diff*diff/r, rVec)
}

// ViscLap returns the viscosity kernel Laplacian for a distance r.
// Zero outside the smoothing radius.
func (k Kernels) ViscLap(r float64) float64 {
	if r >= k.H {
		return 0
	}
	return k.viscConst * (k.H - r)
}
