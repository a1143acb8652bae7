// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a kinematic stand-in for a multicopter and its flight
// controller. It accepts the same commands the real one does, flies toward
// the latest setpoint at a fixed speed and produces smoothly changing values
// for the feeds nothing commands (traffic, RC input).
package sim

import (
	"math"
	"sync"

	"github.com/relabs-tech/flight_command/internal/geo"
)

const (
	cruiseSpeed   = 8.0 // m/s
	climbRate     = 2.5 // m/s
	turnRate      = 90  // deg/s
	metersPerDeg  = 111320.0
	airborneAbove = 0.5 // m

	trafficRadiusDeg = 0.01
	trafficAltitude  = 450 // m MSL
)

// Flight modes the simulated controller accepts.
var knownModes = map[string]bool{
	"STABILIZE": true,
	"GUIDED":    true,
	"LOITER":    true,
	"LAND":      true,
	"RTL":       true,
}

// State is one consistent picture of the simulated vehicle.
type State struct {
	Connected bool
	Armed     bool
	Guided    bool
	Mode      string

	Latitude  float64
	Longitude float64
	AltMSL    float64
	RelAlt    float64
	Heading   float64

	ServoPWM float64
	RC5      uint16
}

// Traffic is the one transponder contact circling home.
type Traffic struct {
	ICAO      uint32
	Callsign  string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Heading   float64
	Speed     float64 // m/s
}

// Vehicle is safe for concurrent use.
type Vehicle struct {
	mu      sync.Mutex
	st      State
	home    geo.Point
	homeAlt float64

	target    *geo.Point
	targetAlt float64
	elapsed   float64 // seconds of simulated time
}

// New places a disarmed vehicle on the ground at home, in STABILIZE.
func New(home geo.Point, homeAltMSL float64) *Vehicle {
	return &Vehicle{
		home:    home,
		homeAlt: homeAltMSL,
		st: State{
			Connected: true,
			Mode:      "STABILIZE",
			Latitude:  home.Lat,
			Longitude: home.Lon,
			AltMSL:    homeAltMSL,
			RC5:       1500,
		},
	}
}

// State returns a copy of the current state.
func (v *Vehicle) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.st
}

// Arm arms or disarms. Disarming in the air is refused.
func (v *Vehicle) Arm(arm bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !arm && v.st.RelAlt > airborneAbove {
		return false
	}
	v.st.Armed = arm
	return true
}

// SetMode switches flight mode; unknown modes are refused.
func (v *Vehicle) SetMode(mode string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !knownModes[mode] {
		return false
	}
	v.setModeLocked(mode)
	return true
}

func (v *Vehicle) setModeLocked(mode string) {
	v.st.Mode = mode
	v.st.Guided = mode == "GUIDED"
	switch mode {
	case "LAND":
		v.target = nil
		v.targetAlt = 0
	case "RTL":
		home := v.home
		v.target = &home
		v.targetAlt = v.st.RelAlt
	}
}

// TakeOff climbs to altitude meters above home. It needs GUIDED and armed.
func (v *Vehicle) TakeOff(altitude float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.st.Guided || !v.st.Armed || altitude <= 0 {
		return false
	}
	v.targetAlt = altitude
	return true
}

// Land descends in place and disarms on touchdown.
func (v *Vehicle) Land() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.st.Armed {
		return false
	}
	v.setModeLocked("LAND")
	return true
}

// SetServo records a servo output. Only output 9 is wired.
func (v *Vehicle) SetServo(output int, pwm float64) bool {
	if output != 9 || pwm <= 0 {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.st.ServoPWM = pwm
	return true
}

// GoTo sets a global target, altitude relative to home. Ignored unless
// GUIDED and airborne, like the real controller.
func (v *Vehicle) GoTo(lat, lon, relAlt float64) bool {
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.st.Guided || v.st.RelAlt <= airborneAbove {
		return false
	}
	v.target = &geo.Point{Lat: lat, Lon: lon}
	v.targetAlt = relAlt
	return true
}

// Offset moves the target by forward/right/up meters in the body frame and
// turns to yawDeg.
func (v *Vehicle) Offset(forward, right, up, yawDeg float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.st.Guided || v.st.RelAlt <= airborneAbove {
		return false
	}
	h := geo.ToRadians(v.st.Heading)
	north := forward*math.Cos(h) - right*math.Sin(h)
	east := forward*math.Sin(h) + right*math.Cos(h)
	v.target = &geo.Point{
		Lat: v.st.Latitude + north/metersPerDeg,
		Lon: v.st.Longitude + east/(metersPerDeg*math.Cos(geo.ToRadians(v.st.Latitude))),
	}
	v.targetAlt = math.Max(0, v.st.RelAlt+up)
	v.st.Heading = geo.NormalizeHeading(yawDeg)
	return true
}

// Step advances the simulation by dt seconds.
func (v *Vehicle) Step(dt float64) {
	if dt <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elapsed += dt
	v.st.RC5 = uint16(1500 + 400*math.Sin(v.elapsed*0.2))

	if !v.st.Armed {
		return
	}

	// Vertical.
	dz := v.targetAlt - v.st.RelAlt
	if step := climbRate * dt; math.Abs(dz) > step {
		dz = math.Copysign(step, dz)
	}
	v.st.RelAlt += dz
	v.st.AltMSL = v.homeAlt + v.st.RelAlt

	if v.st.Mode == "LAND" && v.st.RelAlt <= 0 {
		v.st.RelAlt = 0
		v.st.AltMSL = v.homeAlt
		v.st.Armed = false
		return
	}

	// Horizontal, only once off the ground.
	if v.target == nil || v.st.RelAlt <= airborneAbove {
		return
	}
	dist, err := geo.DistanceMeters(v.st.Latitude, v.st.Longitude, v.target.Lat, v.target.Lon)
	if err != nil || dist == 0 {
		return
	}
	if brg, err := geo.InitialBearingDegrees(v.st.Latitude, v.st.Longitude, v.target.Lat, v.target.Lon); err == nil {
		v.st.Heading = turnToward(v.st.Heading, brg, turnRate*dt)
	}
	frac := math.Min(1, cruiseSpeed*dt/dist)
	v.st.Latitude += (v.target.Lat - v.st.Latitude) * frac
	v.st.Longitude += (v.target.Lon - v.st.Longitude) * frac
}

// Traffic returns the contact's position at the current simulated time.
func (v *Vehicle) Traffic() Traffic {
	v.mu.Lock()
	t := v.elapsed
	v.mu.Unlock()

	angle := t * 0.05 // rad/s, about two minutes per lap
	return Traffic{
		ICAO:      0x4CA7F3,
		Callsign:  "SIM001",
		Latitude:  v.home.Lat + trafficRadiusDeg*math.Cos(angle),
		Longitude: v.home.Lon + trafficRadiusDeg*math.Sin(angle),
		Altitude:  trafficAltitude,
		Heading:   geo.NormalizeHeading(geo.ToDegrees(angle) + 90),
		Speed:     trafficRadiusDeg * metersPerDeg * 0.05,
	}
}

// turnToward rotates from by at most maxStep degrees toward to, along the
// shorter arc.
func turnToward(from, to, maxStep float64) float64 {
	diff := math.Mod(to-from+540, 360) - 180
	if math.Abs(diff) <= maxStep {
		return geo.NormalizeHeading(to)
	}
	return geo.NormalizeHeading(from + math.Copysign(maxStep, diff))
}
