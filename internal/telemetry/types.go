package telemetry

// VehicleState is the flight controller connection/arming/mode status. All
// four fields come from one upstream message and are applied together.
type VehicleState struct {
	Connected bool   `json:"connected"`
	Armed     bool   `json:"armed"`
	Guided    bool   `json:"guided"`
	Mode      string `json:"mode"`
}

// GlobalPosition is the fused global fix of the vehicle.
type GlobalPosition struct {
	Latitude    float64 `json:"lat"`          // decimal degrees
	Longitude   float64 `json:"lon"`          // decimal degrees
	AltitudeMSL float64 `json:"altitude_msl"` // meters
}

// RelativeAltitude is the height above the takeoff point, from its own feed.
type RelativeAltitude struct {
	Meters float64 `json:"meters"`
}

// CompassHeading is the magnetic heading in degrees, 0–360.
type CompassHeading struct {
	Degrees float64 `json:"degrees"`
}

// TrafficContact is the most recently seen transponder contact. Only the last
// contact is kept; a new one overwrites whatever was there.
type TrafficContact struct {
	ICAOAddress uint32  `json:"icao"`
	HeadingDeg  float64 `json:"heading_deg"`
	GroundSpeed float64 `json:"ground_speed"` // m/s
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
}

// TimeReference is the flight controller's reference clock.
type TimeReference struct {
	EpochSeconds int64 `json:"epoch_seconds"`
}

// RCChannelIndex is the only RC input channel the store tracks.
const RCChannelIndex = 5

// RCChannel is the pulse width seen on RC input channel RCChannelIndex.
type RCChannel struct {
	PWM uint16 `json:"pwm"` // µs
}
