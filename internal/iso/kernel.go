// Package iso extracts isosurfaces from bricked volumes by marching a
// tetrahedral decomposition of the voxel lattice.
package iso

import (
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// cubeCorners are the voxel offsets of a cell's eight corners.
var cubeCorners = [8][3]uint64{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeTetrahedra splits a cell into six tetrahedra sharing the main
// diagonal between corners 0 and 6.
var cubeTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// marchCell emits the triangles of one cell. corners and values follow the
// cubeCorners order.
func marchCell(corners [8]types.Vertex, values [8]float64, iso float64,
	emit func(a, b, c types.Vertex)) {
	for _, tet := range cubeTetrahedra {
		p := [4]types.Vertex{corners[tet[0]], corners[tet[1]], corners[tet[2]], corners[tet[3]]}
		v := [4]float64{values[tet[0]], values[tet[1]], values[tet[2]], values[tet[3]]}
		marchTetrahedron(p, v, iso, emit)
	}
}

// interpolated vertex on the edge between tet corners i and j.
func edgeVertex(p [4]types.Vertex, v [4]float64, iso float64, i, j int) types.Vertex {
	d := v[j] - v[i]
	t := 0.5
	if d != 0 {
		t = (iso - v[i]) / d
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return types.Vertex{
		X: p[i].X + float32(t)*(p[j].X-p[i].X),
		Y: p[i].Y + float32(t)*(p[j].Y-p[i].Y),
		Z: p[i].Z + float32(t)*(p[j].Z-p[i].Z),
	}
}

// marchTetrahedron classifies the four corners against the isovalue and
// emits zero, one, or two triangles.
func marchTetrahedron(p [4]types.Vertex, v [4]float64, iso float64,
	emit func(a, b, c types.Vertex)) {
	var index int
	for i := 0; i < 4; i++ {
		if v[i] < iso {
			index |= 1 << i
		}
	}
	ev := func(i, j int) types.Vertex { return edgeVertex(p, v, iso, i, j) }

	switch index {
	case 0x00, 0x0F:
		// Entirely on one side.
	case 0x01:
		emit(ev(0, 1), ev(0, 2), ev(0, 3))
	case 0x0E:
		emit(ev(0, 1), ev(0, 3), ev(0, 2))
	case 0x02:
		emit(ev(1, 0), ev(1, 3), ev(1, 2))
	case 0x0D:
		emit(ev(1, 0), ev(1, 2), ev(1, 3))
	case 0x04:
		emit(ev(2, 0), ev(2, 1), ev(2, 3))
	case 0x0B:
		emit(ev(2, 0), ev(2, 3), ev(2, 1))
	case 0x08:
		emit(ev(3, 0), ev(3, 2), ev(3, 1))
	case 0x07:
		emit(ev(3, 0), ev(3, 1), ev(3, 2))
	case 0x03:
		emit(ev(0, 2), ev(0, 3), ev(1, 3))
		emit(ev(0, 2), ev(1, 3), ev(1, 2))
	case 0x0C:
		emit(ev(0, 2), ev(1, 3), ev(0, 3))
		emit(ev(0, 2), ev(1, 2), ev(1, 3))
	case 0x05:
		emit(ev(0, 1), ev(2, 3), ev(0, 3))
		emit(ev(0, 1), ev(2, 1), ev(2, 3))
	case 0x0A:
		emit(ev(0, 1), ev(0, 3), ev(2, 3))
		emit(ev(0, 1), ev(2, 3), ev(2, 1))
	case 0x06:
		emit(ev(0, 1), ev(1, 3), ev(2, 3))
		emit(ev(0, 1), ev(2, 3), ev(0, 2))
	case 0x09:
		emit(ev(0, 1), ev(2, 3), ev(1, 3))
		emit(ev(0, 1), ev(0, 2), ev(2, 3))
	}
}
