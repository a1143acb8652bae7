// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mavros defines the message shapes exchanged with the flight
// controller bridge: inbound telemetry feeds, outbound setpoints and the
// request/response pairs of the command services. Field names follow the
// bridge's JSON encoding so payloads interoperate unchanged.
package mavros

import "time"

// Feed topics, relative to the bus prefix.
const (
	TopicState          = "state"
	TopicGlobalPosition = "global_position/global"
	TopicRelAltitude    = "global_position/rel_alt"
	TopicCompassHeading = "global_position/compass_hdg"
	TopicTimeReference  = "time_reference"
	TopicADSBVehicle    = "adsb/vehicle"
	TopicRCIn           = "rc/in"

	TopicSetpointGlobal = "setpoint_raw/global"
	TopicSetpointLocal  = "setpoint_raw/local"
)

// Command services, relative to the bus prefix.
const (
	ServiceArming  = "cmd/arming"
	ServiceSetMode = "set_mode"
	ServiceTakeoff = "cmd/takeoff"
	ServiceLand    = "cmd/land"
	ServiceCommand = "cmd/command"
)

// Header carries the frame id of a setpoint.
type Header struct {
	FrameID string `json:"frame_id" msgpack:"frame_id"`
}

// Vector3 is a plain x/y/z triple.
type Vector3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// ---- inbound feeds ----

// State is the flight controller status feed.
type State struct {
	Connected bool   `json:"connected" msgpack:"connected"`
	Armed     bool   `json:"armed" msgpack:"armed"`
	Guided    bool   `json:"guided" msgpack:"guided"`
	Mode      string `json:"mode" msgpack:"mode"`
}

// NavSatFix is the global position feed.
type NavSatFix struct {
	Latitude  float64 `json:"latitude" msgpack:"latitude"`
	Longitude float64 `json:"longitude" msgpack:"longitude"`
	Altitude  float64 `json:"altitude" msgpack:"altitude"`
}

// Float64 wraps a single scalar (relative altitude, compass heading).
type Float64 struct {
	Data float64 `json:"data" msgpack:"data"`
}

// Stamp is a seconds/nanoseconds timestamp.
type Stamp struct {
	Secs  int64 `json:"secs" msgpack:"secs"`
	Nsecs int64 `json:"nsecs" msgpack:"nsecs"`
}

// StampFromTime converts t to a Stamp.
func StampFromTime(t time.Time) Stamp {
	return Stamp{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Seconds truncates the stamp to whole seconds.
func (s Stamp) Seconds() int64 {
	return s.Secs + s.Nsecs/int64(time.Second)
}

// TimeReference is the reference time feed.
type TimeReference struct {
	TimeRef Stamp  `json:"time_ref" msgpack:"time_ref"`
	Source  string `json:"source,omitempty" msgpack:"source,omitempty"`
}

// ADSBVehicle is one transponder contact report.
type ADSBVehicle struct {
	ICAOAddress uint32  `json:"ICAO_address" msgpack:"ICAO_address"`
	Callsign    string  `json:"callsign,omitempty" msgpack:"callsign,omitempty"`
	Latitude    float64 `json:"latitude" msgpack:"latitude"`
	Longitude   float64 `json:"longitude" msgpack:"longitude"`
	Altitude    float64 `json:"altitude,omitempty" msgpack:"altitude,omitempty"`
	Heading     float64 `json:"heading" msgpack:"heading"`
	HorVelocity float64 `json:"hor_velocity" msgpack:"hor_velocity"`
}

// RCIn is a raw RC input frame.
type RCIn struct {
	RSSI     uint8    `json:"rssi,omitempty" msgpack:"rssi,omitempty"`
	Channels []uint16 `json:"channels" msgpack:"channels"`
}

// ---- outbound setpoints ----

// Coordinate frames and field-ignore masks agreed with the flight controller.
// These values are part of the wire contract.
const (
	FrameGlobalRelAltInt = 6 // MAV_FRAME_GLOBAL_RELATIVE_ALT_INT
	FrameBodyOffsetNED   = 9 // MAV_FRAME_BODY_OFFSET_NED

	// Position only: ignore velocity, acceleration, yaw and yaw rate.
	GlobalTypeMask = 4088
	// Position and yaw: ignore velocity, acceleration and yaw rate.
	LocalTypeMask = 3064

	FrameIDGlobal = "SET_POSITION_TARGET_GLOBAL_INT"
	FrameIDLocal  = "SET_POSITION_TARGET_LOCAL_NED"
)

// GlobalPositionTarget is the global-frame setpoint.
type GlobalPositionTarget struct {
	Header              Header  `json:"header" msgpack:"header"`
	CoordinateFrame     uint8   `json:"coordinate_frame" msgpack:"coordinate_frame"`
	TypeMask            uint16  `json:"type_mask" msgpack:"type_mask"`
	Latitude            float64 `json:"latitude" msgpack:"latitude"`
	Longitude           float64 `json:"longitude" msgpack:"longitude"`
	Altitude            float64 `json:"altitude" msgpack:"altitude"`
	Velocity            Vector3 `json:"velocity" msgpack:"velocity"`
	AccelerationOrForce Vector3 `json:"acceleration_or_force" msgpack:"acceleration_or_force"`
	Yaw                 float32 `json:"yaw" msgpack:"yaw"`
	YawRate             float32 `json:"yaw_rate" msgpack:"yaw_rate"`
}

// PositionTarget is the local-frame setpoint.
type PositionTarget struct {
	Header              Header  `json:"header" msgpack:"header"`
	CoordinateFrame     uint8   `json:"coordinate_frame" msgpack:"coordinate_frame"`
	TypeMask            uint16  `json:"type_mask" msgpack:"type_mask"`
	Position            Vector3 `json:"position" msgpack:"position"`
	Velocity            Vector3 `json:"velocity" msgpack:"velocity"`
	AccelerationOrForce Vector3 `json:"acceleration_or_force" msgpack:"acceleration_or_force"`
	Yaw                 float32 `json:"yaw" msgpack:"yaw"`
	YawRate             float32 `json:"yaw_rate" msgpack:"yaw_rate"`
}

// ---- services ----

// CommandBoolRequest arms (Value=true) or disarms the vehicle.
type CommandBoolRequest struct {
	Value bool `json:"value" msgpack:"value"`
}

// CommandResponse is shared by the arming, takeoff/land and long command services.
type CommandResponse struct {
	Success bool  `json:"success" msgpack:"success"`
	Result  uint8 `json:"result" msgpack:"result"`
}

// SetModeRequest asks for a custom flight mode, e.g. "GUIDED".
type SetModeRequest struct {
	BaseMode   uint8  `json:"base_mode" msgpack:"base_mode"`
	CustomMode string `json:"custom_mode" msgpack:"custom_mode"`
}

// SetModeResponse reports whether the mode change was sent to the vehicle.
type SetModeResponse struct {
	ModeSent bool `json:"mode_sent" msgpack:"mode_sent"`
}

// CommandTOLRequest is a takeoff or land request. Zero lat/lon/yaw mean
// "at the current position".
type CommandTOLRequest struct {
	MinPitch  float32 `json:"min_pitch" msgpack:"min_pitch"`
	Yaw       float32 `json:"yaw" msgpack:"yaw"`
	Latitude  float32 `json:"latitude" msgpack:"latitude"`
	Longitude float32 `json:"longitude" msgpack:"longitude"`
	Altitude  float32 `json:"altitude" msgpack:"altitude"`
}

// MAV_CMD_DO_SET_SERVO and the servo output it drives.
const (
	CmdDoSetServo = 183
	ServoOutput   = 9
)

// CommandLongRequest is a raw MAV_CMD with up to seven parameters.
type CommandLongRequest struct {
	Broadcast    bool    `json:"broadcast" msgpack:"broadcast"`
	Command      uint16  `json:"command" msgpack:"command"`
	Confirmation uint8   `json:"confirmation" msgpack:"confirmation"`
	Param1       float32 `json:"param1" msgpack:"param1"`
	Param2       float32 `json:"param2" msgpack:"param2"`
	Param3       float32 `json:"param3" msgpack:"param3"`
	Param4       float32 `json:"param4" msgpack:"param4"`
	Param5       float32 `json:"param5" msgpack:"param5"`
	Param6       float32 `json:"param6" msgpack:"param6"`
	Param7       float32 `json:"param7" msgpack:"param7"`
}
