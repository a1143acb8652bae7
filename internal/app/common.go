// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/flight_command/internal/bus"
	"github.com/relabs-tech/flight_command/internal/config"
	"github.com/relabs-tech/flight_command/internal/flight"
	"github.com/relabs-tech/flight_command/internal/journal"
	"github.com/relabs-tech/flight_command/internal/logging"
	"github.com/relabs-tech/flight_command/internal/retry"
)

// node is what every binary needs: config, logger and a bus connection.
type node struct {
	cfg *config.Config
	log *logging.Logger
	bus *bus.Bus
	jrn *journal.Journal // nil when JOURNAL_PATH is empty or the role keeps none
}

// journalRoles record outcomes or snapshots. The rest never touch the
// journal, and opening it there would only contend for the SQLite lock.
var journalRoles = map[string]bool{
	"web":     true,
	"console": true,
	"mission": true,
}

func wantsJournal(cfg *config.Config, role string) bool {
	return cfg.JournalPath != "" && journalRoles[role]
}

// setup loads the global config, builds the logger and connects to the
// broker as "<MQTT_CLIENT_ID>-<role>". The journal is opened for the roles
// in journalRoles only.
func setup(role string) (*node, error) {
	cfg := config.Get()
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}

	lg, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	codec, err := bus.CodecByName(cfg.PayloadCodec)
	if err != nil {
		lg.Close()
		return nil, err
	}

	b, err := bus.Connect(bus.Options{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.ClientID(role),
		Prefix:      cfg.TopicPrefix,
		QoS:         cfg.MQTTQoS,
		CallTimeout: cfg.CallTimeout(),
		Codec:       codec,
		Logger:      lg.Logger,
	})
	if err != nil {
		lg.Close()
		return nil, err
	}

	rt := &node{cfg: cfg, log: lg, bus: b}
	if wantsJournal(cfg, role) {
		rt.jrn, err = journal.Open(cfg.JournalPath, lg.Logger)
		if err != nil {
			rt.close()
			return nil, err
		}
		lg.Info("journal opened", "path", cfg.JournalPath)
	}
	return rt, nil
}

// vehicle builds and starts the flight facade on the node's bus.
func (rt *node) vehicle() (*flight.Vehicle, error) {
	opts := []flight.Option{
		flight.WithLogger(rt.log.Logger),
		flight.WithTolerance(rt.cfg.PositionToleranceDeg),
		flight.WithArmPolicy(retry.Policy{Attempts: rt.cfg.ArmAttempts, Delay: rt.cfg.ArmRetryDelay()}),
	}
	if rt.jrn != nil {
		opts = append(opts, flight.WithOutcomeSink(rt.jrn))
	}
	v := flight.New(rt.bus, opts...)
	if err := v.Start(); err != nil {
		return nil, err
	}
	return v, nil
}

func (rt *node) close() {
	if rt.jrn != nil {
		rt.jrn.Close()
	}
	rt.bus.Close()
	rt.log.Close()
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
