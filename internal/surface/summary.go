package surface

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// ClassSummary aggregates the catalog rows of a single class.
type ClassSummary struct {
	Triangles int     `json:"triangles"`
	Vertices  int     `json:"vertices"`
	TotalArea float64 `json:"total_area"`
	MeanArea  float64 `json:"mean_area"`
}

// Summary describes one pipeline run for status lines and renderers.
type Summary struct {
	Buildings int                           `json:"buildings"`
	Triangles int                           `json:"triangles"`
	TotalArea float64                       `json:"total_area"`
	Classes   map[SurfaceClass]ClassSummary `json:"classes"`
	// Bounds encloses every vertex in every buffer. It is the zero Box when
	// there is nothing to render. The API reports it with each run.
	Bounds r3.Box `json:"-"`
}

// Summarise computes per-class counts and areas from the catalog and the
// scene bounding box from the mesh buffers.
func Summarise(buildings int, meshes Meshes, catalog Catalog) Summary {
	s := Summary{
		Buildings: buildings,
		Triangles: len(catalog),
		Classes:   make(map[SurfaceClass]ClassSummary),
	}

	areas := make(map[SurfaceClass][]float64)
	all := make([]float64, 0, len(catalog))
	for _, r := range catalog {
		areas[r.Class] = append(areas[r.Class], r.Area)
		all = append(all, r.Area)
	}
	s.TotalArea = floats.Sum(all)

	for _, c := range Classes {
		a := areas[c]
		if len(a) == 0 {
			continue
		}
		cs := ClassSummary{
			Triangles: len(a),
			TotalArea: floats.Sum(a),
			MeanArea:  stat.Mean(a, nil),
		}
		if buf, ok := meshes[c]; ok {
			cs.Vertices = buf.VertexCount()
		}
		s.Classes[c] = cs
	}

	s.Bounds = Bounds(meshes)
	return s
}

// Bounds returns the axis-aligned box around every vertex in meshes, or
// the zero Box when there are no vertices.
func Bounds(meshes Meshes) r3.Box {
	var xs, ys, zs []float64
	for _, c := range Classes {
		buf, ok := meshes[c]
		if !ok {
			continue
		}
		for _, v := range buf.Vertices {
			xs = append(xs, v.X)
			ys = append(ys, v.Y)
			zs = append(zs, v.Z)
		}
	}
	if len(xs) == 0 {
		return r3.Box{}
	}
	return r3.Box{
		Min: r3.Vec{X: floats.Min(xs), Y: floats.Min(ys), Z: floats.Min(zs)},
		Max: r3.Vec{X: floats.Max(xs), Y: floats.Max(ys), Z: floats.Max(zs)},
	}
}
