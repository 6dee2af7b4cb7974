package surface

// SurfaceRecord is the catalog row for one triangle.
type SurfaceRecord struct {
	BuildingID string       `json:"building_id"`
	Class      SurfaceClass `json:"surface_type"`
	Area       float64      `json:"area"`
	// Index is the triangle's zero-based position within its building.
	Index int `json:"index"`
}

// Catalog holds one record per triangle in (building, triangle) order until
// it is reordered by SortBy.
type Catalog []SurfaceRecord

// BuildCatalog classifies every triangle of every building and emits one
// record per triangle. The result length equals the total triangle count.
// Building IDs are copied as given; Decode has already substituted
// UnknownBuildingID for an absent identifier, and an empty one stays empty.
func BuildCatalog(buildings []Building, epsilon float64) Catalog {
	n := 0
	for _, b := range buildings {
		n += len(b.Triangles)
	}

	catalog := make(Catalog, 0, n)
	for _, b := range buildings {
		for idx, t := range b.Triangles {
			catalog = append(catalog, SurfaceRecord{
				BuildingID: b.ID,
				Class:      ClassifyWithTolerance(t.NZ, epsilon),
				Area:       t.Area,
				Index:      idx,
			})
		}
	}
	return catalog
}

// Clone returns a copy that can be sorted without touching c.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}
