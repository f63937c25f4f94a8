package fluid

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestCubeSide(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 1},
		{7, 1},
		{8, 2},
		{26, 2},
		{27, 3},
		{64, 4},
		{125, 5},
		{500, 7},
		{512, 8},
		{1000, 10},
	}

	for _, tt := range tests {
		if got := cubeSide(tt.n); got != tt.want {
			t.Errorf("cubeSide(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestSeedGridSingleParticle(t *testing.T) {
	b := newBuffers(1, 0.02)
	b.seedGrid(0.05)

	// side 1, spacing 0.8h = 0.04, half = 0.5:
	// ((0-0.5)*0.04, (0-0.5)*0.04 + 0.5, (0-0.5)*0.04)
	want := r3.Vec{X: -0.02, Y: 0.48, Z: -0.02}
	got := b.pos[0]
	if math.Abs(got.X-want.X) > 1e-15 || math.Abs(got.Y-want.Y) > 1e-15 || math.Abs(got.Z-want.Z) > 1e-15 {
		t.Errorf("seeded position = %v, want %v", got, want)
	}
	if b.vel[0] != (r3.Vec{}) {
		t.Errorf("seeded velocity = %v, want zero", b.vel[0])
	}
}

func TestSeedGridDeterministic(t *testing.T) {
	a := newBuffers(27, 0.02)
	b := newBuffers(27, 0.02)
	a.seedGrid(0.05)
	b.seedGrid(0.05)

	for i := range a.pos {
		if a.pos[i] != b.pos[i] {
			t.Fatalf("position %d differs: %v vs %v", i, a.pos[i], b.pos[i])
		}
	}
}

func TestSeedGridClearsState(t *testing.T) {
	b := newBuffers(8, 0.02)
	b.seedGrid(0.05)

	// Dirty every mutable field, then reseed.
	for i := range b.pos {
		b.vel[i] = r3.Vec{X: 1, Y: 2, Z: 3}
		b.force[i] = r3.Vec{X: 4}
		b.impulse[i] = r3.Vec{Y: 5}
		b.density[i] = 123
		b.pressure[i] = 456
	}
	b.seedGrid(0.05)

	for i := range b.pos {
		if b.vel[i] != (r3.Vec{}) || b.force[i] != (r3.Vec{}) || b.impulse[i] != (r3.Vec{}) {
			t.Fatalf("particle %d vectors not cleared after reseed", i)
		}
		if b.density[i] != 0 || b.pressure[i] != 0 {
			t.Fatalf("particle %d scalars not cleared after reseed", i)
		}
	}
}

func TestSeedGridSpacingWithinKernelRadius(t *testing.T) {
	b := newBuffers(8, 0.02)
	h := 0.05
	b.seedGrid(h)

	// Adjacent lattice neighbors sit at 0.8h, inside the kernel cutoff, so
	// every particle starts with at least one real neighbor.
	d := r3.Norm(r3.Sub(b.pos[0], b.pos[1]))
	if math.Abs(d-0.8*h) > 1e-12 {
		t.Errorf("lattice spacing = %v, want %v", d, 0.8*h)
	}
}
