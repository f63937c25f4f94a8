package fluid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// cellCoord identifies one cell of the uniform grid.
type cellCoord struct {
	x, y, z int32
}

// SpatialIndex is a uniform hash grid mapping cell coordinates to the
// particle indices located there. It is rebuilt from scratch at the start of
// every tick and is valid only until the next position mutation.
//
// Queries return a superset of the true neighbors; callers filter by exact
// distance. With cellSize >= smoothing radius, any particle within the radius
// of a point lies in the point's cell or one of the 26 adjacent cells. Cost
// is O(1) per query under roughly uniform particle density and degrades
// toward O(n) if all particles collapse into a single cell; that is a known
// degradation mode, not a defect.
type SpatialIndex struct {
	cellSize float64
	invCell  float64
	cells    map[cellCoord][]int32
}

// NewSpatialIndex creates a grid with the given cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		cellSize: cellSize,
		invCell:  1.0 / cellSize,
		cells:    make(map[cellCoord][]int32, 256),
	}
}

// CellSize returns the grid cell edge length.
func (s *SpatialIndex) CellSize() float64 {
	return s.cellSize
}

// Rebuild clears the grid and re-inserts every particle. Buckets keep their
// capacity across rebuilds. Insertion order follows particle index, so bucket
// contents are deterministic; Rebuild must not run concurrently with queries.
func (s *SpatialIndex) Rebuild(positions []r3.Vec) {
	for c, bucket := range s.cells {
		s.cells[c] = bucket[:0]
	}
	for i, p := range positions {
		c := s.cellOf(p)
		s.cells[c] = append(s.cells[c], int32(i))
	}
}

// QueryInto appends the indices of all candidate neighbors within radius of
// pos to dst and returns the updated slice. Reuse dst across calls to avoid
// allocations. Cells are visited in a fixed loop order so the candidate
// sequence is identical run to run.
func (s *SpatialIndex) QueryInto(dst []int32, pos r3.Vec, radius float64) []int32 {
	cellRadius := int32(math.Ceil(radius * s.invCell))
	center := s.cellOf(pos)

	for dz := -cellRadius; dz <= cellRadius; dz++ {
		for dy := -cellRadius; dy <= cellRadius; dy++ {
			for dx := -cellRadius; dx <= cellRadius; dx++ {
				c := cellCoord{center.x + dx, center.y + dy, center.z + dz}
				dst = append(dst, s.cells[c]...)
			}
		}
	}
	return dst
}

// cellOf returns the cell containing a position.
func (s *SpatialIndex) cellOf(p r3.Vec) cellCoord {
	return cellCoord{
		x: int32(math.Floor(p.X * s.invCell)),
		y: int32(math.Floor(p.Y * s.invCell)),
		z: int32(math.Floor(p.Z * s.invCell)),
	}
}
