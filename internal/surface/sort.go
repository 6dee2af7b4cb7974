package surface

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Field names a sortable catalog column.
type Field int

const (
	FieldBuildingID Field = iota
	FieldSurfaceClass
	FieldArea
)

// Fields lists the catalog columns in display order.
var Fields = []Field{FieldBuildingID, FieldSurfaceClass, FieldArea}

// String returns the column heading.
func (f Field) String() string {
	switch f {
	case FieldBuildingID:
		return "Building ID"
	case FieldSurfaceClass:
		return "Surface Type"
	case FieldArea:
		return "Area"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Key returns the query/JSON name of the column.
func (f Field) Key() string {
	switch f {
	case FieldBuildingID:
		return "building_id"
	case FieldSurfaceClass:
		return "surface_type"
	case FieldArea:
		return "area"
	default:
		return ""
	}
}

// ParseField accepts either the column heading or its key, case-insensitively.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "building_id", "building id", "building", "ehr", "id":
		return FieldBuildingID, nil
	case "surface_type", "surface type", "class", "type":
		return FieldSurfaceClass, nil
	case "area":
		return FieldArea, nil
	}
	return 0, fmt.Errorf("unknown catalog field %q", name)
}

// SortBy reorders records in place by field and returns the flag to pass on
// the next call for the same column, so repeated calls toggle direction.
//
// Area is compared as a number. Building ID and surface type are compared as
// case-sensitive text. The sort is stable in both directions: records that
// compare equal keep their relative order.
func SortBy(records Catalog, field Field, descending bool) bool {
	slices.SortStableFunc(records, func(a, b SurfaceRecord) int {
		c := compareRecords(a, b, field)
		if descending {
			return -c
		}
		return c
	})
	return !descending
}

func compareRecords(a, b SurfaceRecord, field Field) int {
	switch field {
	case FieldBuildingID:
		return strings.Compare(a.BuildingID, b.BuildingID)
	case FieldSurfaceClass:
		return strings.Compare(string(a.Class), string(b.Class))
	case FieldArea:
		return cmp.Compare(a.Area, b.Area)
	default:
		return 0
	}
}

// SortState tracks the next direction for each column. The zero value sorts
// every column ascending on its first use. It is not safe for concurrent use;
// callers serialise access together with the catalog it sorts.
type SortState struct {
	descending map[Field]bool
}

// Sort sorts records by field using the stored direction for that column
// and flips it for next time. It returns the direction that was applied.
func (s *SortState) Sort(records Catalog, field Field) (descending bool) {
	if s.descending == nil {
		s.descending = make(map[Field]bool)
	}
	descending = s.descending[field]
	s.descending[field] = SortBy(records, field, descending)
	return descending
}

// Next reports the direction the next Sort on field will use.
func (s *SortState) Next(field Field) (descending bool) {
	return s.descending[field]
}

// Reset returns every column to ascending.
func (s *SortState) Reset() {
	s.descending = nil
}
