// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geo holds the navigation math used to decide whether the vehicle
// has reached a destination and how two points relate to each other.
//
// All angles are in degrees on the public surface. Distances are in meters on
// a spherical earth of radius EarthRadiusMeters.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// [-90,90] / [-180,180) or is not a finite number.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Validate reports ErrInvalidCoordinate if p is out of range.
func (p Point) Validate() error {
	return ValidateCoordinate(p.Lat, p.Lon)
}

// ValidateCoordinate checks lat ∈ [-90,90] and lon ∈ [-180,180).
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, lat, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %.7f outside [-90,90]", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon >= 180 {
		return fmt.Errorf("%w: longitude %.7f outside [-180,180)", ErrInvalidCoordinate, lon)
	}
	return nil
}

// ToRadians converts degrees to radians. No range check.
func ToRadians(deg float64) float64 {
	return deg / 180 * math.Pi
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad / math.Pi * 180
}

// DistanceMeters returns the great-circle distance between two points using
// the spherical law of cosines. The cosine is clamped to [-1,1] so identical
// and antipodal points yield 0 and πR instead of NaN.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateCoordinate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateCoordinate(lat2, lon2); err != nil {
		return 0, err
	}
	if lat1 == lat2 && lon1 == lon2 {
		return 0, nil
	}

	phi1, phi2 := ToRadians(lat1), ToRadians(lat2)
	c := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(ToRadians(lon1-lon2))
	c = clamp(c, -1, 1)
	return EarthRadiusMeters * math.Acos(c), nil
}

// InitialBearingDegrees returns the forward azimuth from point 1 toward
// point 2, clockwise from true north, in [0,360).
func InitialBearingDegrees(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateCoordinate(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateCoordinate(lat2, lon2); err != nil {
		return 0, err
	}

	phi1, phi2 := ToRadians(lat1), ToRadians(lat2)
	dLon := ToRadians(lon2 - lon1)
	x := math.Cos(phi2) * math.Sin(dLon)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return NormalizeHeading(ToDegrees(math.Atan2(x, y))), nil
}

// NormalizeHeading wraps any angle in degrees into [0,360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg+360, 360)
	if h < 0 {
		h += 360
	}
	// math.Mod can hand back 360 for inputs a hair below a multiple of 360.
	if h >= 360 {
		h = 0
	}
	return h
}

// InBoundingBox reports whether the current position lies within an
// axis-aligned box of ±toleranceDeg around the destination, boundaries
// included.
//
// This is a box in raw degrees, not a geodesic radius: a degree of longitude
// shrinks toward the poles, and there is no wraparound across the ±180°
// seam. Callers flying near either should compare DistanceMeters instead.
func InBoundingBox(curLat, curLon, destLat, destLon, toleranceDeg float64) bool {
	if toleranceDeg < 0 || math.IsNaN(toleranceDeg) {
		return false
	}
	return math.Abs(curLat-destLat) <= toleranceDeg &&
		math.Abs(curLon-destLon) <= toleranceDeg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
