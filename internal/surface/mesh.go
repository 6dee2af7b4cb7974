package surface

import "gonum.org/v1/gonum/spatial/r3"

// MeshBuffer is a triangle soup for one SurfaceClass: a flat vertex list and
// one index triple per triangle. Vertices are never shared between triangles,
// so triple t is always (3t, 3t+1, 3t+2).
type MeshBuffer struct {
	Vertices  []r3.Vec
	Triangles [][3]int
}

// VertexCount returns the number of vertices.
func (m *MeshBuffer) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns the number of triangles.
func (m *MeshBuffer) TriangleCount() int { return len(m.Triangles) }

// append adds t's vertices in their given order and the triple that indexes
// them, starting at the vertex count before the append.
func (m *MeshBuffer) append(t Triangle) {
	n := len(m.Vertices)
	m.Vertices = append(m.Vertices, t.V0, t.V1, t.V2)
	m.Triangles = append(m.Triangles, [3]int{n, n + 1, n + 2})
}

// Corners returns the three vertices referenced by triangle i.
func (m *MeshBuffer) Corners(i int) [3]r3.Vec {
	tri := m.Triangles[i]
	return [3]r3.Vec{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}
}

// Meshes maps each class that received at least one triangle to its buffer.
// Classes with no triangles have no entry.
type Meshes map[SurfaceClass]*MeshBuffer

// Present returns the classes that have a buffer, in canonical order.
func (m Meshes) Present() []SurfaceClass {
	var out []SurfaceClass
	for _, c := range Classes {
		if _, ok := m[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Empty reports whether there is nothing to render.
func (m Meshes) Empty() bool { return len(m) == 0 }

// Aggregate buckets classified triangles by class and builds one MeshBuffer
// per class in input order.
func Aggregate(tris []ClassifiedTriangle) Meshes {
	meshes := make(Meshes)
	for _, t := range tris {
		buf, ok := meshes[t.Class]
		if !ok {
			buf = &MeshBuffer{}
			meshes[t.Class] = buf
		}
		buf.append(t.Triangle)
	}
	return meshes
}
