package geo

import (
	"errors"
	"math"
	"testing"
)

func TestToRadians(t *testing.T) {
	tests := []struct {
		deg, rad float64
	}{
		{0, 0},
		{90, math.Pi / 2},
		{180, math.Pi},
		{-45, -math.Pi / 4},
		{720, 4 * math.Pi},
	}
	for _, tt := range tests {
		if got := ToRadians(tt.deg); math.Abs(got-tt.rad) > 1e-12 {
			t.Errorf("ToRadians(%v) = %v, expected %v", tt.deg, got, tt.rad)
		}
	}
}

func TestDistanceSamePointIsZero(t *testing.T) {
	points := []Point{
		{0, 0},
		{10, 20},
		{47.397742, 8.545594},
		{-33.8688, 151.2093},
		{89.9999, -179.9999},
		{-90, 0},
	}
	for _, p := range points {
		d, err := DistanceMeters(p.Lat, p.Lon, p.Lat, p.Lon)
		if err != nil {
			t.Fatalf("DistanceMeters(%v): %v", p, err)
		}
		if math.IsNaN(d) {
			t.Errorf("DistanceMeters(%v, %v) is NaN", p, p)
		}
		if math.Abs(d) > 1e-3 {
			t.Errorf("DistanceMeters(%v, %v) = %v, expected 0", p, p, d)
		}
	}
}

func TestDistanceOneDegreeOfLongitudeAtEquator(t *testing.T) {
	d, err := DistanceMeters(0, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-111195) > 50 {
		t.Errorf("DistanceMeters(0,0,0,1) = %.1f, expected ≈111195", d)
	}
}

func TestDistanceAntipodal(t *testing.T) {
	d, err := DistanceMeters(0, 0, 0, -180)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(d) {
		t.Fatal("antipodal distance is NaN")
	}
	want := math.Pi * EarthRadiusMeters
	if math.Abs(d-want) > 1 {
		t.Errorf("antipodal distance = %v, expected %v", d, want)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]Point{
		{{0, 0}, {0, 1}},
		{{52.2297, 21.0122}, {50.0647, 19.9450}},
		{{-33.8688, 151.2093}, {51.5074, -0.1278}},
		{{10, 20}, {-10, -20}},
		{{89, 0}, {89, 179}},
	}
	for _, p := range pairs {
		ab, err := DistanceMeters(p[0].Lat, p[0].Lon, p[1].Lat, p[1].Lon)
		if err != nil {
			t.Fatal(err)
		}
		ba, err := DistanceMeters(p[1].Lat, p[1].Lon, p[0].Lat, p[0].Lon)
		if err != nil {
			t.Fatal(err)
		}
		if ab != ba {
			t.Errorf("distance(%v,%v)=%v but distance(%v,%v)=%v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestDistanceRejectsInvalidCoordinates(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"lat too high", 91, 0, 0, 0},
		{"lat too low", 0, 0, -90.5, 0},
		{"lon 180", 0, 180, 0, 0},
		{"lon too low", 0, 0, 0, -181},
		{"NaN", math.NaN(), 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DistanceMeters(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("expected ErrInvalidCoordinate, got %v", err)
			}
			_, err = InitialBearingDegrees(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Errorf("bearing: expected ErrInvalidCoordinate, got %v", err)
			}
		})
	}
}

func TestInitialBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, 90},
		{"south", 1, 0, 0, 0, 180},
		{"west", 0, 1, 0, 0, 270},
		{"north-east", 0, 0, 1, 1, 44.9956},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := InitialBearingDegrees(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(b-tt.expected) > 1e-3 {
				t.Errorf("bearing = %v, expected %v", b, tt.expected)
			}
		})
	}
}

func TestInitialBearingRange(t *testing.T) {
	for lat1 := -80.0; lat1 <= 80; lat1 += 20 {
		for lon1 := -170.0; lon1 < 180; lon1 += 35 {
			for lat2 := -85.0; lat2 <= 85; lat2 += 17 {
				for lon2 := -175.0; lon2 < 180; lon2 += 25 {
					b, err := InitialBearingDegrees(lat1, lon1, lat2, lon2)
					if err != nil {
						t.Fatal(err)
					}
					if b < 0 || b >= 360 || math.IsNaN(b) {
						t.Fatalf("bearing(%v,%v,%v,%v) = %v outside [0,360)", lat1, lon1, lat2, lon2, b)
					}
				}
			}
		}
	}
	// Identical points: atan2(0,0) = 0.
	if b, _ := InitialBearingDegrees(10, 10, 10, 10); b != 0 {
		t.Errorf("bearing to self = %v, expected 0", b)
	}
}

func TestNormalizeHeading(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
		{-450, 270},
		{359.5, 359.5},
	}
	for _, tt := range tests {
		if got := NormalizeHeading(tt.in); math.Abs(got-tt.out) > 1e-9 {
			t.Errorf("NormalizeHeading(%v) = %v, expected %v", tt.in, got, tt.out)
		}
	}
}

func TestInBoundingBox(t *testing.T) {
	tests := []struct {
		name                             string
		curLat, curLon, destLat, destLon float64
		tol                              float64
		expected                         bool
	}{
		{"self zero tolerance", 10, 20, 10, 20, 0, true},
		{"self wide tolerance", 10, 20, 10, 20, 5, true},
		{"inside", 10.00001, 19.99999, 10, 20, 0.0001, true},
		{"lat on boundary", 10.5, 20, 10, 20, 0.5, true},
		{"lon on boundary", 10, 19.5, 10, 20, 0.5, true},
		{"lat outside", 10.6, 20, 10, 20, 0.5, false},
		{"lon outside", 10, 20.6, 10, 20, 0.5, false},
		{"both outside", 11, 21, 10, 20, 0.5, false},
		{"negative tolerance", 10, 20, 10, 20, -1, false},
		// No seam handling: these are 0.0002° apart on the globe.
		{"across seam", 0, 179.9999, 0, -179.9999, 0.001, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InBoundingBox(tt.curLat, tt.curLon, tt.destLat, tt.destLon, tt.tol)
			if got != tt.expected {
				t.Errorf("InBoundingBox(%v,%v,%v,%v,%v) = %v, expected %v",
					tt.curLat, tt.curLon, tt.destLat, tt.destLon, tt.tol, got, tt.expected)
			}
		})
	}
}
