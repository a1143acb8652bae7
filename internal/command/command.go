// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package command issues the high-level flight commands (arm, guided mode,
// take off, land, servo) as synchronous request/response exchanges and
// reduces every answer to success or failure.
//
// Commands are not queued or serialized against each other: two goroutines
// may run different commands at the same time. Each call blocks for the
// round trip, and Arm additionally for its retry pauses, so callers that need
// to stay responsive should not issue commands from a telemetry callback.
package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/flight_command/internal/mavros"
	"github.com/relabs-tech/flight_command/internal/retry"
)

// Caller performs one request/response exchange with a named service and
// decodes the answer into resp.
type Caller interface {
	Call(ctx context.Context, service string, req, resp any) error
}

// Names used in outcomes and logs.
const (
	NameArm     = "ARM"
	NameGuided  = "GUIDED MODE"
	NameTakeOff = "TAKE OFF"
	NameLand    = "LAND"
	NameServo   = "SERVO"
)

// Outcome is the result of one command, as surfaced to the log and to any Sink.
type Outcome struct {
	Command  string    `json:"command"`
	Success  bool      `json:"success"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// String is the human readable form, e.g. "ARM SUCCESSFUL".
func (o Outcome) String() string {
	if o.Success {
		return o.Command + " SUCCESSFUL"
	}
	return o.Command + " FAIL"
}

// Sink receives every command outcome.
type Sink interface {
	RecordOutcome(Outcome)
}

// DefaultArmPolicy is three attempts, five seconds apart.
var DefaultArmPolicy = retry.Policy{Attempts: 3, Delay: 5 * time.Second}

// Channel issues commands through a Caller.
type Channel struct {
	caller    Caller
	log       *slog.Logger
	sinks     []Sink
	armPolicy retry.Policy
	sleep     retry.SleepFunc
	now       func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger outcomes are written to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSink adds a sink that receives every outcome.
func WithSink(s Sink) Option {
	return func(c *Channel) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithArmPolicy overrides DefaultArmPolicy.
func WithArmPolicy(p retry.Policy) Option {
	return func(c *Channel) { c.armPolicy = p }
}

// WithSleep replaces the pause used between arm attempts.
func WithSleep(s retry.SleepFunc) Option {
	return func(c *Channel) { c.sleep = s }
}

// New returns a Channel that talks through caller.
func New(caller Caller, opts ...Option) *Channel {
	c := &Channel{
		caller:    caller,
		log:       slog.Default(),
		armPolicy: DefaultArmPolicy,
		sleep:     retry.Sleep,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "command")
	return c
}

// Arm requests arming, retrying per the arm policy. It returns true on the
// first acknowledged attempt.
func (c *Channel) Arm(ctx context.Context) bool {
	var lastErr error
	attempts, ok := c.armPolicy.DoNotify(ctx, c.sleep, func(attempt int) bool {
		var resp mavros.CommandResponse
		lastErr = c.caller.Call(ctx, mavros.ServiceArming, mavros.CommandBoolRequest{Value: true}, &resp)
		success := lastErr == nil && resp.Success
		if !success {
			c.log.Warn("arm attempt failed", "attempt", attempt, "of", c.armPolicy.Attempts, "error", lastErr)
		}
		return success
	}, func(attempt int, next time.Duration) {
		c.log.Debug("retrying arm", "after", attempt, "pause", next)
	})
	if ok {
		lastErr = nil
	}
	c.report(NameArm, ok, attempts, lastErr)
	return ok
}

// SetGuidedMode requests the GUIDED custom mode and returns whether the
// vehicle acknowledged it.
func (c *Channel) SetGuidedMode(ctx context.Context) bool {
	var resp mavros.SetModeResponse
	err := c.caller.Call(ctx, mavros.ServiceSetMode, mavros.SetModeRequest{CustomMode: "GUIDED"}, &resp)
	ok := err == nil && resp.ModeSent
	c.report(NameGuided, ok, 1, err)
	return ok
}

// TakeOff requests a climb to altitude meters above the takeoff point from
// the current position.
func (c *Channel) TakeOff(ctx context.Context, altitude float64) bool {
	var resp mavros.CommandResponse
	req := mavros.CommandTOLRequest{Altitude: float32(altitude)}
	err := c.caller.Call(ctx, mavros.ServiceTakeoff, req, &resp)
	ok := err == nil && resp.Success
	c.report(NameTakeOff, ok, 1, err)
	return ok
}

// Land requests a landing here, now.
func (c *Channel) Land(ctx context.Context) bool {
	var resp mavros.CommandResponse
	err := c.caller.Call(ctx, mavros.ServiceLand, mavros.CommandTOLRequest{}, &resp)
	ok := err == nil && resp.Success
	c.report(NameLand, ok, 1, err)
	return ok
}

// SetServoPWM drives servo output 9 to pulseWidthUs. The expected range is
// 1000–2000 µs; it is passed through unchecked.
func (c *Channel) SetServoPWM(ctx context.Context, pulseWidthUs float64) bool {
	var resp mavros.CommandResponse
	req := mavros.CommandLongRequest{
		Command: mavros.CmdDoSetServo,
		Param1:  mavros.ServoOutput,
		Param2:  float32(pulseWidthUs),
	}
	err := c.caller.Call(ctx, mavros.ServiceCommand, req, &resp)
	ok := err == nil && resp.Success
	c.report(NameServo, ok, 1, err)
	return ok
}

func (c *Channel) report(name string, ok bool, attempts int, err error) {
	o := Outcome{Command: name, Success: ok, Attempts: attempts, At: c.now()}
	if err != nil {
		o.Error = err.Error()
	}

	if ok {
		c.log.Info(o.String(), "attempts", attempts)
	} else {
		c.log.Warn(o.String(), "attempts", attempts, "error", err)
	}
	for _, s := range c.sinks {
		s.RecordOutcome(o)
	}
}
