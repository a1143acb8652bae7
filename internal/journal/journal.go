// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package journal keeps a flight record in SQLite: every command outcome and
// periodic telemetry snapshots, so a flight can be reviewed afterwards.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relabs-tech/flight_command/internal/command"
	"github.com/relabs-tech/flight_command/internal/telemetry"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertOutcomeSQL = `
INSERT INTO command_outcomes (at, command, success, attempts, error)
VALUES (?, ?, ?, ?, ?)`

	selectOutcomesSQL = `
SELECT
    at,
    command,
    success,
    attempts,
    error
FROM command_outcomes
ORDER BY id DESC
LIMIT ?`

	insertSnapshotSQL = `
INSERT INTO telemetry_snapshots (taken_at,
                                 connected,
                                 armed,
                                 guided,
                                 mode,
                                 latitude,
                                 longitude,
                                 altitude,
                                 rel_alt,
                                 heading,
                                 rc5_pwm,
                                 fc_time,
                                 traffic_icao)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSnapshotsSQL = `
SELECT
    taken_at,
    connected,
    armed,
    guided,
    mode,
    latitude,
    longitude,
    altitude,
    rel_alt,
    heading,
    rc5_pwm,
    fc_time,
    traffic_icao
FROM telemetry_snapshots
ORDER BY id DESC
LIMIT ?`
)

// Journal is safe for concurrent use.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, "_journal_mode=WAL&_synchronous=NORMAL"))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Journal{db: db, log: log.With("component", "journal")}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordOutcome stores o. It implements command.Sink, so failures are
// logged rather than returned.
func (j *Journal) RecordOutcome(o command.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := j.InsertOutcome(ctx, o); err != nil {
		j.log.Warn("command outcome not journaled", "command", o.Command, "error", err)
	}
}

// InsertOutcome stores o.
func (j *Journal) InsertOutcome(ctx context.Context, o command.Outcome) error {
	var errText sql.NullString
	if o.Error != "" {
		errText = sql.NullString{String: o.Error, Valid: true}
	}
	_, err := j.db.ExecContext(ctx, insertOutcomeSQL, o.At.UTC(), o.Command, o.Success, o.Attempts, errText)
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// Outcomes returns up to limit outcomes, newest first.
func (j *Journal) Outcomes(ctx context.Context, limit int) (outcomes []command.Outcome, err error) {
	rows, err := j.db.QueryContext(ctx, selectOutcomesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var o command.Outcome
		var errText sql.NullString
		if err = rows.Scan(&o.At, &o.Command, &o.Success, &o.Attempts, &errText); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Error = errText.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// SnapshotRow is one stored snapshot. Entities that were never set are
// stored as NULL and come back invalid.
type SnapshotRow struct {
	TakenAt     time.Time
	Connected   sql.NullBool
	Armed       sql.NullBool
	Guided      sql.NullBool
	Mode        sql.NullString
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
	Altitude    sql.NullFloat64
	RelAltitude sql.NullFloat64
	Heading     sql.NullFloat64
	RC5PWM      sql.NullInt64
	FCTime      sql.NullInt64
	TrafficICAO sql.NullInt64
}

func rowFromSnapshot(sn telemetry.Snapshot) SnapshotRow {
	r := SnapshotRow{TakenAt: sn.TakenAt.UTC()}
	if s := sn.State; s.Set {
		r.Connected = sql.NullBool{Bool: s.Value.Connected, Valid: true}
		r.Armed = sql.NullBool{Bool: s.Value.Armed, Valid: true}
		r.Guided = sql.NullBool{Bool: s.Value.Guided, Valid: true}
		r.Mode = sql.NullString{String: s.Value.Mode, Valid: true}
	}
	if p := sn.Position; p.Set {
		r.Latitude = sql.NullFloat64{Float64: p.Value.Latitude, Valid: true}
		r.Longitude = sql.NullFloat64{Float64: p.Value.Longitude, Valid: true}
		r.Altitude = sql.NullFloat64{Float64: p.Value.AltitudeMSL, Valid: true}
	}
	if a := sn.RelativeAltitude; a.Set {
		r.RelAltitude = sql.NullFloat64{Float64: a.Value.Meters, Valid: true}
	}
	if h := sn.Heading; h.Set {
		r.Heading = sql.NullFloat64{Float64: h.Value.Degrees, Valid: true}
	}
	if rc := sn.RC; rc.Set {
		r.RC5PWM = sql.NullInt64{Int64: int64(rc.Value.PWM), Valid: true}
	}
	if t := sn.Time; t.Set {
		r.FCTime = sql.NullInt64{Int64: t.Value.EpochSeconds, Valid: true}
	}
	if tr := sn.Traffic; tr.Set {
		r.TrafficICAO = sql.NullInt64{Int64: int64(tr.Value.ICAOAddress), Valid: true}
	}
	return r
}

// RecordSnapshot stores sn.
func (j *Journal) RecordSnapshot(ctx context.Context, sn telemetry.Snapshot) error {
	r := rowFromSnapshot(sn)
	_, err := j.db.ExecContext(ctx, insertSnapshotSQL,
		r.TakenAt, r.Connected, r.Armed, r.Guided, r.Mode,
		r.Latitude, r.Longitude, r.Altitude, r.RelAltitude, r.Heading,
		r.RC5PWM, r.FCTime, r.TrafficICAO)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// Snapshots returns up to limit snapshots, newest first.
func (j *Journal) Snapshots(ctx context.Context, limit int) (snaps []SnapshotRow, err error) {
	rows, err := j.db.QueryContext(ctx, selectSnapshotsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r SnapshotRow
		if err = rows.Scan(&r.TakenAt, &r.Connected, &r.Armed, &r.Guided, &r.Mode,
			&r.Latitude, &r.Longitude, &r.Altitude, &r.RelAltitude, &r.Heading,
			&r.RC5PWM, &r.FCTime, &r.TrafficICAO); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snaps = append(snaps, r)
	}
	return snaps, rows.Err()
}

// Run stores a snapshot of store every interval until ctx is done. Nothing
// is stored before the first telemetry arrives.
func (j *Journal) Run(ctx context.Context, store *telemetry.Store, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sn := store.Snapshot()
			if !sn.Any() {
				continue
			}
			if err := j.RecordSnapshot(ctx, sn); err != nil && ctx.Err() == nil {
				j.log.Warn("snapshot not journaled", "error", err)
			}
		}
	}
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
