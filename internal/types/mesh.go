package types

// Vertex is a point in volume space.
type Vertex struct {
	X, Y, Z float32
}

// Color is an RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float32
}

// Mesh is an indexed triangle soup produced by isosurface extraction or
// loaded from a geometry file. Normals and Colors are optional and, when
// present, run parallel to Vertices.
type Mesh struct {
	Name      string
	Vertices  []Vertex
	Normals   []Vertex
	Colors    []Color
	Triangles []uint32 // three indices per triangle
}

// AddTriangle appends a triangle with per-vertex normals and a uniform color.
func (m *Mesh) AddTriangle(v [3]Vertex, n [3]Vertex, c Color) {
	base := uint32(len(m.Vertices))
	for i := 0; i < 3; i++ {
		m.Vertices = append(m.Vertices, v[i])
		m.Normals = append(m.Normals, n[i])
		m.Colors = append(m.Colors, c)
	}
	m.Triangles = append(m.Triangles, base, base+1, base+2)
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) / 3 }

// RecomputeNormals replaces the per-vertex normals with the face normal of
// the owning triangle.
func (m *Mesh) RecomputeNormals() {
	m.Normals = make([]Vertex, len(m.Vertices))
	for t := 0; t+2 < len(m.Triangles); t += 3 {
		a := m.Vertices[m.Triangles[t]]
		b := m.Vertices[m.Triangles[t+1]]
		c := m.Vertices[m.Triangles[t+2]]
		ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
		vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
		n := Vertex{
			X: uy*vz - uz*vy,
			Y: uz*vx - ux*vz,
			Z: ux*vy - uy*vx,
		}
		m.Normals[m.Triangles[t]] = n
		m.Normals[m.Triangles[t+1]] = n
		m.Normals[m.Triangles[t+2]] = n
	}
}
