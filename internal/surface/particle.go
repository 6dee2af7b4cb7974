package surface

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// UnknownBuildingID is used when a building object carries no identifier.
const UnknownBuildingID = "Unknown"

// Triangle is one sampled surface facet ("particle"). Vertices are kept in
// the order the data source gave them; no winding correction is applied.
type Triangle struct {
	V0, V1, V2 r3.Vec
	NZ         float64 // z-component of the outward normal
	Area       float64
}

// Vertices returns the three corners in input order.
func (t Triangle) Vertices() [3]r3.Vec {
	return [3]r3.Vec{t.V0, t.V1, t.V2}
}

// Building owns an identifier and its triangles in source order. A
// triangle's position in Triangles becomes its catalog Index.
type Building struct {
	ID        string
	Triangles []Triangle
}

// ClassifiedTriangle pairs a triangle with the class computed for it.
type ClassifiedTriangle struct {
	Triangle
	Class SurfaceClass
}

// particleFields are the keys every particle object must carry, in the
// order they are checked.
var particleFields = []string{"x0", "y0", "z0", "x1", "y1", "z1", "x2", "y2", "z2", "nz", "area"}

// DecodeReader reads the JSON building list from r. See Decode.
func DecodeReader(r io.Reader) ([]Building, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read particle data: %w", err)
	}
	return Decode(data)
}

// Decode parses the building list delivered by the particle service:
//
//	[{"ehr": "101036327", "particles": [{"x0": .., "y0": .., ..., "nz": .., "area": ..}]}]
//
// A missing or null "ehr" becomes UnknownBuildingID and a missing
// "particles" is an empty list. Every particle must carry all of x0..z2, nz
// and area as numbers; anything else is a *DataError and no buildings are
// returned.
func Decode(data []byte) ([]Building, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, &DataError{BuildingIndex: -1, ParticleIndex: -1, Reason: "expected a JSON array of buildings", Err: err}
	}

	buildings := make([]Building, 0, len(raw))
	for bi, rb := range raw {
		b, err := decodeBuilding(bi, rb)
		if err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, nil
}

func decodeBuilding(index int, data json.RawMessage) (Building, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return Building{}, &DataError{BuildingIndex: index, BuildingID: UnknownBuildingID, ParticleIndex: -1, Reason: "building must be a JSON object", Err: err}
	}

	b := Building{ID: buildingID(obj["ehr"])}

	rawParticles, ok := obj["particles"]
	if !ok || isNull(rawParticles) {
		return b, nil
	}

	var particles []json.RawMessage
	if err := json.Unmarshal(rawParticles, &particles); err != nil {
		return Building{}, &DataError{BuildingIndex: index, BuildingID: b.ID, ParticleIndex: -1, Field: "particles", Reason: "must be an array of objects", Err: err}
	}

	b.Triangles = make([]Triangle, 0, len(particles))
	for pi, rp := range particles {
		t, err := decodeParticle(rp)
		if err != nil {
			err.BuildingIndex = index
			err.BuildingID = b.ID
			err.ParticleIndex = pi
			return Building{}, err
		}
		b.Triangles = append(b.Triangles, t)
	}
	return b, nil
}

func decodeParticle(data json.RawMessage) (Triangle, *DataError) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return Triangle{}, &DataError{Reason: "particle must be a JSON object", Err: err}
	}

	var v [11]float64
	for i, name := range particleFields {
		rv, ok := obj[name]
		if !ok || isNull(rv) {
			return Triangle{}, &DataError{Field: name, Reason: "missing required field"}
		}
		if err := json.Unmarshal(rv, &v[i]); err != nil {
			return Triangle{}, &DataError{Field: name, Reason: "not a number", Err: err}
		}
	}

	t := Triangle{
		V0:   r3.Vec{X: v[0], Y: v[1], Z: v[2]},
		V1:   r3.Vec{X: v[3], Y: v[4], Z: v[5]},
		V2:   r3.Vec{X: v[6], Y: v[7], Z: v[8]},
		NZ:   v[9],
		Area: v[10],
	}
	if t.Area < 0 {
		return Triangle{}, &DataError{Field: "area", Reason: fmt.Sprintf("must be non-negative, got %g", t.Area)}
	}
	return t, nil
}

// buildingID turns the "ehr" value into an opaque identifier. Strings are
// used as-is; numbers and other scalars keep their literal JSON text.
func buildingID(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return UnknownBuildingID
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
