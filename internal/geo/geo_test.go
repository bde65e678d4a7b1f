package geo

import (
	"errors"
	"math"
	"testing"
)

func TestValidate_SamePoint(t *testing.T) {
	res, err := Validate(0, 0, 0, 0, DefaultRadiusMeters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Admit {
		t.Error("identical coordinates should be admitted")
	}
	if res.DistanceMeters != 0 {
		t.Errorf("distance = %v, want 0", res.DistanceMeters)
	}
}

func TestValidate_OutOfRadius(t *testing.T) {
	// 0.001 degrees of longitude at the equator is roughly 111 m.
	res, err := Validate(0, 0, 0, 0.001, DefaultRadiusMeters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Admit {
		t.Error("point ~111m away should be rejected at 20m radius")
	}
	if res.DistanceMeters < 100 || res.DistanceMeters > 120 {
		t.Errorf("distance = %v, want ~111", res.DistanceMeters)
	}
}

func TestValidate_InclusiveBoundary(t *testing.T) {
	res, err := Validate(12.9716, 77.5946, 12.9717, 77.5946, 1e9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Re-validate with the radius set to the exact computed distance;
	// the boundary is inclusive.
	res2, err := Validate(12.9716, 77.5946, 12.9717, 77.5946, res.DistanceMeters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res2.Admit {
		t.Errorf("distance %v with equal radius should be admitted", res.DistanceMeters)
	}
}

func TestValidate_InvalidCoordinates(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"classroom lat too high", 91, 0, 0, 0},
		{"classroom lon too low", 0, -181, 0, 0},
		{"reported lat too low", 0, 0, -90.5, 0},
		{"reported lon too high", 0, 0, 0, 180.1},
		{"nan latitude", math.NaN(), 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.lat1, tc.lon1, tc.lat2, tc.lon2, DefaultRadiusMeters)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("err = %v, want ErrInvalidCoordinates", err)
			}
		})
	}
}

func TestValidate_DefaultRadiusWhenUnset(t *testing.T) {
	res, err := Validate(0, 0, 0, 0.0001, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ~11m away, inside the 20m default.
	if !res.Admit {
		t.Errorf("expected admit at %vm with default radius", res.DistanceMeters)
	}
}
