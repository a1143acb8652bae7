// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package flight is the single surface an autonomy loop talks to: one
// Vehicle holding the telemetry store, fed from the bus, with the command,
// setpoint and position queries on top.
package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relabs-tech/flight_command/internal/command"
	"github.com/relabs-tech/flight_command/internal/geo"
	"github.com/relabs-tech/flight_command/internal/mavros"
	"github.com/relabs-tech/flight_command/internal/retry"
	"github.com/relabs-tech/flight_command/internal/setpoint"
	"github.com/relabs-tech/flight_command/internal/telemetry"
)

// ErrNoPosition is returned by position queries before the first global
// position has arrived.
var ErrNoPosition = errors.New("flight: no global position received yet")

// DefaultTolerance is the IsInPosition box half-width in degrees (~11 m of
// latitude).
const DefaultTolerance = 0.0001

// Transport is what the vehicle needs from the bus.
type Transport interface {
	command.Caller
	setpoint.Sender
	Subscribe(topic string, handler func(payload []byte)) error
	Decode(payload []byte, v any) error
}

// Vehicle is safe for concurrent use once Start has returned.
type Vehicle struct {
	tr        Transport
	store     *telemetry.Store
	cmd       *command.Channel
	sp        *setpoint.Publisher
	log       *slog.Logger
	tolerance float64

	cmdOpts []command.Option

	connectedOnce sync.Once
	connected     chan struct{}
}

// Option configures a Vehicle.
type Option func(*Vehicle)

// WithLogger sets the logger for the vehicle and everything it owns.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vehicle) {
		if l != nil {
			v.log = l
		}
	}
}

// WithStore uses an existing store instead of a fresh one.
func WithStore(s *telemetry.Store) Option {
	return func(v *Vehicle) { v.store = s }
}

// WithTolerance sets the IsInPosition box half-width in degrees.
func WithTolerance(deg float64) Option {
	return func(v *Vehicle) { v.tolerance = deg }
}

// WithOutcomeSink forwards every command outcome to s.
func WithOutcomeSink(s command.Sink) Option {
	return func(v *Vehicle) { v.cmdOpts = append(v.cmdOpts, command.WithSink(s)) }
}

// WithArmPolicy overrides the arm retry policy.
func WithArmPolicy(p retry.Policy) Option {
	return func(v *Vehicle) { v.cmdOpts = append(v.cmdOpts, command.WithArmPolicy(p)) }
}

// WithSleep replaces the pause between arm attempts.
func WithSleep(s retry.SleepFunc) Option {
	return func(v *Vehicle) { v.cmdOpts = append(v.cmdOpts, command.WithSleep(s)) }
}

// New builds a Vehicle on tr. Call Start to begin receiving telemetry.
func New(tr Transport, opts ...Option) *Vehicle {
	v := &Vehicle{
		tr:        tr,
		log:       slog.Default(),
		tolerance: DefaultTolerance,
		connected: make(chan struct{}),
	}
	for _, o := range opts {
		o(v)
	}
	if v.store == nil {
		v.store = telemetry.NewStore()
	}
	v.cmd = command.New(tr, append([]command.Option{command.WithLogger(v.log)}, v.cmdOpts...)...)
	v.sp = setpoint.New(tr, v.log)
	v.log = v.log.With("component", "flight")
	return v
}

// Telemetry returns the store the feeds are written into.
func (v *Vehicle) Telemetry() *telemetry.Store { return v.store }

// Start subscribes to every telemetry feed. Undecodable payloads are logged
// and dropped; they never reach the store.
func (v *Vehicle) Start() error {
	feeds := []struct {
		topic   string
		handler func([]byte)
	}{
		{mavros.TopicState, v.onState},
		{mavros.TopicGlobalPosition, v.onGlobalPosition},
		{mavros.TopicRelAltitude, v.onRelAltitude},
		{mavros.TopicCompassHeading, v.onCompassHeading},
		{mavros.TopicADSBVehicle, v.onADSBVehicle},
		{mavros.TopicTimeReference, v.onTimeReference},
		{mavros.TopicRCIn, v.onRCIn},
	}
	for _, f := range feeds {
		if err := v.tr.Subscribe(f.topic, f.handler); err != nil {
			return fmt.Errorf("start telemetry: %w", err)
		}
	}
	v.log.Info("telemetry feeds subscribed", "feeds", len(feeds))
	return nil
}

func (v *Vehicle) decode(topic string, payload []byte, out any) bool {
	if err := v.tr.Decode(payload, out); err != nil {
		v.log.Warn("dropping undecodable message", "topic", topic, "error", err)
		return false
	}
	return true
}

func (v *Vehicle) onState(payload []byte) {
	var m mavros.State
	if !v.decode(mavros.TopicState, payload, &m) {
		return
	}
	v.store.ApplyVehicleState(telemetry.VehicleState{
		Connected: m.Connected,
		Armed:     m.Armed,
		Guided:    m.Guided,
		Mode:      m.Mode,
	})
	if m.Connected {
		v.connectedOnce.Do(func() { close(v.connected) })
	}
}

func (v *Vehicle) onGlobalPosition(payload []byte) {
	var m mavros.NavSatFix
	if !v.decode(mavros.TopicGlobalPosition, payload, &m) {
		return
	}
	err := v.store.ApplyGlobalPosition(telemetry.GlobalPosition{
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		AltitudeMSL: m.Altitude,
	})
	if err != nil {
		v.log.Warn("rejected global position", "lat", m.Latitude, "lon", m.Longitude, "error", err)
	}
}

func (v *Vehicle) onRelAltitude(payload []byte) {
	var m mavros.Float64
	if v.decode(mavros.TopicRelAltitude, payload, &m) {
		v.store.ApplyRelativeAltitude(telemetry.RelativeAltitude{Meters: m.Data})
	}
}

func (v *Vehicle) onCompassHeading(payload []byte) {
	var m mavros.Float64
	if v.decode(mavros.TopicCompassHeading, payload, &m) {
		v.store.ApplyCompassHeading(telemetry.CompassHeading{Degrees: m.Data})
	}
}

func (v *Vehicle) onADSBVehicle(payload []byte) {
	var m mavros.ADSBVehicle
	if !v.decode(mavros.TopicADSBVehicle, payload, &m) {
		return
	}
	v.store.ApplyTrafficContact(telemetry.TrafficContact{
		ICAOAddress: m.ICAOAddress,
		HeadingDeg:  m.Heading,
		GroundSpeed: m.HorVelocity,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
	})
}

func (v *Vehicle) onTimeReference(payload []byte) {
	var m mavros.TimeReference
	if v.decode(mavros.TopicTimeReference, payload, &m) {
		v.store.ApplyTimeReference(telemetry.TimeReference{EpochSeconds: m.TimeRef.Seconds()})
	}
}

func (v *Vehicle) onRCIn(payload []byte) {
	var m mavros.RCIn
	if !v.decode(mavros.TopicRCIn, payload, &m) {
		return
	}
	if !v.store.ApplyRCChannels(m.Channels) {
		v.log.Debug("rc frame too short", "channels", len(m.Channels))
	}
}

// WaitConnected blocks until a state update reports the flight controller
// connected, or ctx is done.
func (v *Vehicle) WaitConnected(ctx context.Context) error {
	select {
	case <-v.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commands.

func (v *Vehicle) Arm(ctx context.Context) bool           { return v.cmd.Arm(ctx) }
func (v *Vehicle) SetGuidedMode(ctx context.Context) bool { return v.cmd.SetGuidedMode(ctx) }
func (v *Vehicle) Land(ctx context.Context) bool          { return v.cmd.Land(ctx) }

func (v *Vehicle) TakeOff(ctx context.Context, altitude float64) bool {
	return v.cmd.TakeOff(ctx, altitude)
}

func (v *Vehicle) SetServoPWM(ctx context.Context, pulseWidthUs float64) bool {
	return v.cmd.SetServoPWM(ctx, pulseWidthUs)
}

// Setpoints.

// FlyTo publishes one global setpoint. It must be repeated for the flight
// controller to keep tracking it.
func (v *Vehicle) FlyTo(lat, lon, alt float64) error {
	return v.sp.PublishGlobal(lat, lon, alt)
}

// Move publishes one body-frame offset setpoint with a yaw in degrees.
func (v *Vehicle) Move(forward, right, up, yawDeg float64) error {
	return v.sp.PublishLocal(forward, right, up, yawDeg)
}

// Position queries.

func (v *Vehicle) position() (telemetry.GlobalPosition, error) {
	s := v.store.GlobalPosition()
	if !s.Set {
		return telemetry.GlobalPosition{}, ErrNoPosition
	}
	return s.Value, nil
}

// IsInPosition reports whether the last known position lies in the
// tolerance box around dest. It is false while no position is known.
func (v *Vehicle) IsInPosition(dest geo.Point) bool {
	return v.IsInPositionWithin(dest, v.tolerance)
}

// IsInPositionWithin is IsInPosition with an explicit tolerance in degrees.
func (v *Vehicle) IsInPositionWithin(dest geo.Point, toleranceDeg float64) bool {
	cur, err := v.position()
	if err != nil {
		v.log.Debug("position check without a fix")
		return false
	}
	if geo.InBoundingBox(cur.Latitude, cur.Longitude, dest.Lat, dest.Lon, toleranceDeg) {
		v.log.Info("IN THE RIGHT POSITION", "lat", cur.Latitude, "lon", cur.Longitude)
		return true
	}
	v.log.Debug("STILL FLYING", "lat", cur.Latitude, "lon", cur.Longitude, "dest_lat", dest.Lat, "dest_lon", dest.Lon)
	return false
}

// DistanceTo is the great-circle distance in meters from the last known
// position to dest.
func (v *Vehicle) DistanceTo(dest geo.Point) (float64, error) {
	cur, err := v.position()
	if err != nil {
		return 0, err
	}
	return geo.DistanceMeters(cur.Latitude, cur.Longitude, dest.Lat, dest.Lon)
}

// BearingTo is the initial bearing in degrees [0,360) from the last known
// position to dest.
func (v *Vehicle) BearingTo(dest geo.Point) (float64, error) {
	cur, err := v.position()
	if err != nil {
		return 0, err
	}
	return geo.InitialBearingDegrees(cur.Latitude, cur.Longitude, dest.Lat, dest.Lon)
}

// PositionAge is how old the last known position is, or false if there is none.
func (v *Vehicle) PositionAge(now time.Time) (time.Duration, bool) {
	s := v.store.GlobalPosition()
	return s.Age(now), s.Set
}
