package gps

import "github.com/relabs-tech/flight_command/internal/mavros"

// Fix is the latest position solution assembled from GGA sentences.
type Fix struct {
	Latitude   float64 `json:"lat"`        // decimal degrees
	Longitude  float64 `json:"lon"`        // decimal degrees
	Altitude   float64 `json:"altitude"`   // meters above mean sea level
	Quality    string  `json:"quality"`    // NMEA fix quality, "0" is no fix
	Satellites int64   `json:"satellites"` // satellites in use
	HDOP       float64 `json:"hdop"`
}

// NavSatFix converts the fix to the global position feed message.
func (f Fix) NavSatFix() mavros.NavSatFix {
	return mavros.NavSatFix{Latitude: f.Latitude, Longitude: f.Longitude, Altitude: f.Altitude}
}
