// Package setpoint emits the motion setpoints the flight controller tracks
// in guided mode. Publishing is fire-and-forget: nothing acknowledges a
// setpoint and delivery is not guaranteed.
package setpoint

import (
	"log/slog"
	"math"

	"github.com/relabs-tech/flight_command/internal/geo"
	"github.com/relabs-tech/flight_command/internal/mavros"
)

// Sender publishes a message on a topic.
type Sender interface {
	Publish(topic string, v any) error
}

// yawOffsetRad is the fixed rotation between the caller's yaw convention and
// the one on the wire. Existing consumers depend on it.
const yawOffsetRad = math.Pi / 2

// Publisher builds and sends setpoints.
type Publisher struct {
	out Sender
	log *slog.Logger
}

// New returns a Publisher sending through out. A nil logger uses slog.Default.
func New(out Sender, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{out: out, log: log.With("component", "setpoint")}
}

// GlobalTarget builds the "go to this absolute point" setpoint. Velocity,
// acceleration, yaw and yaw rate are zero and masked out.
func GlobalTarget(lat, lon, alt float64) mavros.GlobalPositionTarget {
	return mavros.GlobalPositionTarget{
		Header:          mavros.Header{FrameID: mavros.FrameIDGlobal},
		CoordinateFrame: mavros.FrameGlobalRelAltInt,
		TypeMask:        mavros.GlobalTypeMask,
		Latitude:        lat,
		Longitude:       lon,
		Altitude:        alt,
	}
}

// LocalTarget builds the body-offset setpoint. Position x is right, y is
// forward and z is up; yaw is yawDeg in radians plus the fixed 90° offset.
func LocalTarget(forward, right, up, yawDeg float64) mavros.PositionTarget {
	return mavros.PositionTarget{
		Header:          mavros.Header{FrameID: mavros.FrameIDLocal},
		CoordinateFrame: mavros.FrameBodyOffsetNED,
		TypeMask:        mavros.LocalTypeMask,
		Position:        mavros.Vector3{X: right, Y: forward, Z: up},
		Yaw:             float32(geo.ToRadians(yawDeg) + yawOffsetRad),
	}
}

// PublishGlobal sends one global-frame setpoint. The returned error only
// covers handing the message to the transport.
func (p *Publisher) PublishGlobal(lat, lon, alt float64) error {
	msg := GlobalTarget(lat, lon, alt)
	if err := p.out.Publish(mavros.TopicSetpointGlobal, msg); err != nil {
		p.log.Warn("global setpoint not sent", "error", err)
		return err
	}
	p.log.Debug("global setpoint", "lat", lat, "lon", lon, "alt", alt)
	return nil
}

// PublishLocal sends one local-frame setpoint.
func (p *Publisher) PublishLocal(forward, right, up, yawDeg float64) error {
	msg := LocalTarget(forward, right, up, yawDeg)
	if err := p.out.Publish(mavros.TopicSetpointLocal, msg); err != nil {
		p.log.Warn("local setpoint not sent", "error", err)
		return err
	}
	p.log.Debug("local setpoint", "forward", forward, "right", right, "up", up, "yaw_deg", yawDeg)
	return nil
}
