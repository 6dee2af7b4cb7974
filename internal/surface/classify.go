// Package surface classifies building surface triangles by the orientation of
// their normal and aggregates them into per-class triangle-soup buffers and a
// flat catalog of per-triangle records.
//
// Everything here is a pure computation over data already in memory. Network
// retrieval happens before a Pipeline run and rendering happens after it.
package surface

// SurfaceClass is the orientation class assigned to a triangle.
type SurfaceClass string

const (
	Roof  SurfaceClass = "Roof"
	Wall  SurfaceClass = "Wall"
	Floor SurfaceClass = "Floor"
)

// Classes lists every SurfaceClass in canonical order. Renderers and
// summaries iterate in this order so their output is deterministic.
var Classes = []SurfaceClass{Roof, Wall, Floor}

// DefaultEpsilon is the half-width of the Wall band around nz == 0.
const DefaultEpsilon = 1e-6

// String returns the class name as shown in tables and legends.
func (c SurfaceClass) String() string { return string(c) }

// Valid reports whether c is one of the three known classes.
func (c SurfaceClass) Valid() bool {
	switch c {
	case Roof, Wall, Floor:
		return true
	}
	return false
}

// Classify maps the z-component of a triangle's normal to a SurfaceClass
// using DefaultEpsilon.
func Classify(nz float64) SurfaceClass {
	return ClassifyWithTolerance(nz, DefaultEpsilon)
}

// ClassifyWithTolerance returns Roof when nz > epsilon, Floor when
// nz < -epsilon and Wall otherwise. The band is inclusive: nz == ±epsilon is
// a Wall. A NaN normal fails both comparisons and lands in the band too.
func ClassifyWithTolerance(nz, epsilon float64) SurfaceClass {
	switch {
	case nz > epsilon:
		return Roof
	case nz < -epsilon:
		return Floor
	default:
		return Wall
	}
}
