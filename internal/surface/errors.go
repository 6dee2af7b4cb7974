package surface

import (
	"errors"
	"fmt"
)

// ErrData matches any *DataError via errors.Is.
var ErrData = errors.New("invalid surface data")

// ErrNothingToRender is returned by consumers that were handed no mesh
// buffers at all. It is an outcome, not a processing failure.
var ErrNothingToRender = errors.New("no particle data available to visualise")

// DataError reports input that cannot be turned into triangles: a missing or
// non-numeric vertex, normal or area field, or a malformed particle list.
// A DataError aborts the whole run; nothing is defaulted to zero.
type DataError struct {
	BuildingIndex int
	BuildingID    string
	// ParticleIndex is -1 when the problem is with the building itself.
	ParticleIndex int
	Field         string
	Reason        string
	Err           error
}

func (e *DataError) Error() string {
	where := "input"
	switch {
	case e.BuildingIndex < 0:
	case e.ParticleIndex < 0:
		where = fmt.Sprintf("building %d (%s)", e.BuildingIndex, e.BuildingID)
	default:
		where = fmt.Sprintf("building %d (%s) particle %d", e.BuildingIndex, e.BuildingID, e.ParticleIndex)
	}
	msg := fmt.Sprintf("%s: %s", where, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q: %s", where, e.Field, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrData) match any DataError.
func (e *DataError) Is(target error) bool { return target == ErrData }

// IsDataError reports whether err is, or wraps, a *DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
