// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry aggregates the asynchronous flight controller feeds into
// one store that command logic can read at any time without blocking.
//
// Every entity lives in its own slot with its own lock, so a burst of
// position updates never waits behind a heading update. Reads hand back
// copies. There is no transactional read across entities: a position and a
// heading read one after the other may come from different moments, and
// Sample.Seq / Sample.Received are there so callers can tell.
package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/flight_command/internal/geo"
)

// ErrInvalidPosition is returned by ApplyGlobalPosition for a fix outside
// the valid latitude/longitude range. The stored position is left untouched.
var ErrInvalidPosition = errors.New("telemetry: invalid global position")

// Sample is the latest value of one entity together with whether it has ever
// been set, the store-wide arrival order of the update and its arrival time.
// A zero Sample (Set == false) means no update has arrived yet, which is
// different from a legitimate zero reading.
type Sample[T any] struct {
	Value    T         `json:"value"`
	Set      bool      `json:"set"`
	Seq      uint64    `json:"seq,omitempty"`
	Received time.Time `json:"received,omitempty"`
}

// Age is how long ago the sample arrived, or zero if it was never set.
func (s Sample[T]) Age(now time.Time) time.Duration {
	if !s.Set {
		return 0
	}
	return now.Sub(s.Received)
}

// slot is one independently locked entity.
type slot[T any] struct {
	mu sync.RWMutex
	s  Sample[T]
}

func (sl *slot[T]) store(v T, seq *atomic.Uint64, now time.Time) {
	sl.mu.Lock()
	sl.s = Sample[T]{Value: v, Set: true, Seq: seq.Add(1), Received: now}
	sl.mu.Unlock()
}

func (sl *slot[T]) load() Sample[T] {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.s
}

// Store holds the latest known value of each telemetry entity.
// The zero value is not usable; use NewStore.
type Store struct {
	now func() time.Time
	seq atomic.Uint64

	state    slot[VehicleState]
	position slot[GlobalPosition]
	relAlt   slot[RelativeAltitude]
	heading  slot[CompassHeading]
	traffic  slot[TrafficContact]
	timeRef  slot[TimeReference]
	rc       slot[RCChannel]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now for arrival timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store: every entity is unset.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ApplyVehicleState replaces the vehicle state as one unit.
func (s *Store) ApplyVehicleState(v VehicleState) {
	s.state.store(v, &s.seq, s.now())
}

// ApplyGlobalPosition replaces the global position. A fix whose latitude or
// longitude is out of range is a garbled read: it is rejected with
// ErrInvalidPosition and the previous position stays in place.
func (s *Store) ApplyGlobalPosition(v GlobalPosition) error {
	if err := geo.ValidateCoordinate(v.Latitude, v.Longitude); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPosition, err)
	}
	s.position.store(v, &s.seq, s.now())
	return nil
}

// ApplyRelativeAltitude replaces the altitude above takeoff.
func (s *Store) ApplyRelativeAltitude(v RelativeAltitude) {
	s.relAlt.store(v, &s.seq, s.now())
}

// ApplyCompassHeading replaces the compass heading.
func (s *Store) ApplyCompassHeading(v CompassHeading) {
	s.heading.store(v, &s.seq, s.now())
}

// ApplyTrafficContact overwrites the single remembered transponder contact.
func (s *Store) ApplyTrafficContact(v TrafficContact) {
	s.traffic.store(v, &s.seq, s.now())
}

// ApplyTimeReference replaces the reference time.
func (s *Store) ApplyTimeReference(v TimeReference) {
	s.timeRef.store(v, &s.seq, s.now())
}

// ApplyRCChannel5 replaces the RC channel 5 pulse width.
func (s *Store) ApplyRCChannel5(pwm uint16) {
	s.rc.store(RCChannel{PWM: pwm}, &s.seq, s.now())
}

// ApplyRCChannels takes a full RC input frame and keeps channel
// RCChannelIndex. Frames too short to carry it are ignored and reported
// as false.
func (s *Store) ApplyRCChannels(channels []uint16) bool {
	if len(channels) <= RCChannelIndex {
		return false
	}
	s.ApplyRCChannel5(channels[RCChannelIndex])
	return true
}

func (s *Store) VehicleState() Sample[VehicleState]         { return s.state.load() }
func (s *Store) GlobalPosition() Sample[GlobalPosition]     { return s.position.load() }
func (s *Store) RelativeAltitude() Sample[RelativeAltitude] { return s.relAlt.load() }
func (s *Store) CompassHeading() Sample[CompassHeading]     { return s.heading.load() }
func (s *Store) TrafficContact() Sample[TrafficContact]     { return s.traffic.load() }
func (s *Store) TimeReference() Sample[TimeReference]       { return s.timeRef.load() }
func (s *Store) RCChannel5() Sample[RCChannel]              { return s.rc.load() }

// Snapshot is a copy of every entity, read one slot at a time. Entities may
// be skewed relative to each other; compare Seq to order them.
type Snapshot struct {
	TakenAt          time.Time                `json:"taken_at"`
	State            Sample[VehicleState]     `json:"state"`
	Position         Sample[GlobalPosition]   `json:"position"`
	RelativeAltitude Sample[RelativeAltitude] `json:"relative_altitude"`
	Heading          Sample[CompassHeading]   `json:"heading"`
	Traffic          Sample[TrafficContact]   `json:"traffic"`
	Time             Sample[TimeReference]    `json:"time"`
	RC               Sample[RCChannel]        `json:"rc"`
}

// Snapshot copies out every entity.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		TakenAt:          s.now(),
		State:            s.state.load(),
		Position:         s.position.load(),
		RelativeAltitude: s.relAlt.load(),
		Heading:          s.heading.load(),
		Traffic:          s.traffic.load(),
		Time:             s.timeRef.load(),
		RC:               s.rc.load(),
	}
}

// Any reports whether at least one entity has been set.
func (sn Snapshot) Any() bool {
	return sn.State.Set || sn.Position.Set || sn.RelativeAltitude.Set || sn.Heading.Set ||
		sn.Traffic.Set || sn.Time.Set || sn.RC.Set
}
