package surface

import (
	"math"
	"math/rand"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		nz   float64
		want SurfaceClass
	}{
		{"straight up", 1, Roof},
		{"pitched roof", 0.9, Roof},
		{"straight down", -1, Floor},
		{"overhang", -0.9, Floor},
		{"vertical", 0, Wall},
		{"negative zero", math.Copysign(0, -1), Wall},
		{"upper boundary inclusive", 1e-6, Wall},
		{"lower boundary inclusive", -1e-6, Wall},
		{"just above band", 1e-6 + 1e-12, Roof},
		{"just below band", -1e-6 - 1e-12, Floor},
		{"noise inside band", 5e-7, Wall},
		{"NaN", math.NaN(), Wall},
		{"+Inf", math.Inf(1), Roof},
		{"-Inf", math.Inf(-1), Floor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.nz); got != tt.want {
				t.Errorf("Classify(%g) = %s, want %s", tt.nz, got, tt.want)
			}
		})
	}
}

func TestClassifyIsNotASignTest(t *testing.T) {
	// Small positive noise must not become a roof.
	for _, nz := range []float64{1e-9, 1e-7, 9.99e-7} {
		if got := Classify(nz); got != Wall {
			t.Errorf("Classify(%g) = %s, want Wall", nz, got)
		}
		if got := Classify(-nz); got != Wall {
			t.Errorf("Classify(%g) = %s, want Wall", -nz, got)
		}
	}
}

func TestClassifyTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		nz := rng.NormFloat64()
		if i%3 == 0 {
			nz *= 1e-6
		}
		c := Classify(nz)
		if !c.Valid() {
			t.Fatalf("Classify(%g) returned unknown class %q", nz, c)
		}
		switch {
		case nz > DefaultEpsilon && c != Roof:
			t.Fatalf("Classify(%g) = %s, want Roof", nz, c)
		case nz < -DefaultEpsilon && c != Floor:
			t.Fatalf("Classify(%g) = %s, want Floor", nz, c)
		case math.Abs(nz) <= DefaultEpsilon && c != Wall:
			t.Fatalf("Classify(%g) = %s, want Wall", nz, c)
		}
	}
}

func TestClassifyWithTolerance(t *testing.T) {
	if got := ClassifyWithTolerance(0.05, 0.1); got != Wall {
		t.Errorf("0.05 within 0.1 band = %s, want Wall", got)
	}
	if got := ClassifyWithTolerance(0.1, 0.1); got != Wall {
		t.Errorf("0.1 on 0.1 boundary = %s, want Wall", got)
	}
	if got := ClassifyWithTolerance(0.11, 0.1); got != Roof {
		t.Errorf("0.11 outside 0.1 band = %s, want Roof", got)
	}
	if got := ClassifyWithTolerance(-0.11, 0.1); got != Floor {
		t.Errorf("-0.11 outside 0.1 band = %s, want Floor", got)
	}
}

func TestSurfaceClassValid(t *testing.T) {
	for _, c := range Classes {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
		if c.String() != string(c) {
			t.Errorf("String() = %q, want %q", c.String(), string(c))
		}
	}
	if SurfaceClass("Ceiling").Valid() {
		t.Error("Ceiling should not be valid")
	}
}
