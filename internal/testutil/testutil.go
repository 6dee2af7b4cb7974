// Package testutil provides shared test utilities and particle fixtures.
//
// This package centralises the building/particle JSON used by the surface,
// particles and api tests so every package exercises the same input shape.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Particle is the wire shape of one triangle as served by the particle API.
// Fields are pointers so fixtures can drop any of them.
type Particle struct {
	X0   *float64 `json:"x0,omitempty"`
	Y0   *float64 `json:"y0,omitempty"`
	Z0   *float64 `json:"z0,omitempty"`
	X1   *float64 `json:"x1,omitempty"`
	Y1   *float64 `json:"y1,omitempty"`
	Z1   *float64 `json:"z1,omitempty"`
	X2   *float64 `json:"x2,omitempty"`
	Y2   *float64 `json:"y2,omitempty"`
	Z2   *float64 `json:"z2,omitempty"`
	NZ   *float64 `json:"nz,omitempty"`
	Area *float64 `json:"area,omitempty"`
}

// Building is the wire shape of one building.
type Building struct {
	EHR       *string    `json:"ehr,omitempty"`
	Particles []Particle `json:"particles"`
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// S returns a pointer to v.
func S(v string) *string { return &v }

// UnitParticle returns the triangle (0,0,0) (1,0,0) (0,1,0) with the given
// normal z-component and area.
func UnitParticle(nz, area float64) Particle {
	return Particle{
		X0: F(0), Y0: F(0), Z0: F(0),
		X1: F(1), Y1: F(0), Z1: F(0),
		X2: F(0), Y2: F(1), Z2: F(0),
		NZ: F(nz), Area: F(area),
	}
}

// OffsetParticle returns a unit particle translated by (dx, dy, dz) so
// vertices from different triangles are distinguishable.
func OffsetParticle(dx, dy, dz, nz, area float64) Particle {
	return Particle{
		X0: F(dx), Y0: F(dy), Z0: F(dz),
		X1: F(dx + 1), Y1: F(dy), Z1: F(dz),
		X2: F(dx), Y2: F(dy + 1), Z2: F(dz),
		NZ: F(nz), Area: F(area),
	}
}

// NewBuilding returns a building fixture with an identifier.
func NewBuilding(ehr string, particles ...Particle) Building {
	return Building{EHR: S(ehr), Particles: particles}
}

// MarshalBuildings encodes fixtures into the particle API response body.
func MarshalBuildings(t testing.TB, buildings ...Building) []byte {
	t.Helper()
	if buildings == nil {
		buildings = []Building{}
	}
	data, err := json.Marshal(buildings)
	if err != nil {
		t.Fatalf("failed to marshal building fixture: %v", err)
	}
	return data
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewTestRequest creates a test HTTP request with no body.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
