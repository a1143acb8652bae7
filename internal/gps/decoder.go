// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps turns NMEA output of a serial GPS receiver into the same feed
// messages the flight controller bridge publishes, so the ground side can be
// exercised on a bench with nothing but a GPS puck.
package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/flight_command/internal/mavros"
)

// ErrNoFix is returned for a GGA sentence reporting no position solution
// and for a void RMC.
var ErrNoFix = errors.New("gps: no fix")

// Update holds whatever one sentence contributed. Unset fields are nil.
type Update struct {
	Position *mavros.NavSatFix
	Heading  *mavros.Float64
	Time     *mavros.TimeReference
}

// Empty reports whether the sentence produced nothing to publish.
func (u Update) Empty() bool {
	return u.Position == nil && u.Heading == nil && u.Time == nil
}

// Decoder is not safe for concurrent use.
type Decoder struct {
	last Fix
}

// Last is the most recent GGA fix, valid or not.
func (d *Decoder) Last() Fix { return d.last }

// Decode parses one NMEA line. Sentence types other than GGA, RMC and HDT
// yield an empty Update and no error.
func (d *Decoder) Decode(line string) (Update, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Update{}, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Update{}, fmt.Errorf("parse nmea: %w", err)
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		d.last = Fix{
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			Altitude:   m.Altitude,
			Quality:    m.FixQuality,
			Satellites: m.NumSatellites,
			HDOP:       m.HDOP,
		}
		if m.FixQuality == nmea.Invalid {
			return Update{}, ErrNoFix
		}
		pos := d.last.NavSatFix()
		return Update{Position: &pos}, nil

	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Update{}, ErrNoFix
		}
		if !m.Date.Valid || !m.Time.Valid {
			return Update{}, nil
		}
		ref := mavros.TimeReference{TimeRef: mavros.StampFromTime(utc(m.Date, m.Time)), Source: "gps"}
		return Update{Time: &ref}, nil

	case nmea.TypeHDT:
		m := sentence.(nmea.HDT)
		return Update{Heading: &mavros.Float64{Data: m.Heading}}, nil
	}
	return Update{}, nil
}

// utc combines an RMC date and time. Two-digit years below 80 are 20xx.
func utc(d nmea.Date, t nmea.Time) time.Time {
	year := 1900 + d.YY
	if d.YY < 80 {
		year = 2000 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// Run reads NMEA lines from r until ctx is done or r fails, and hands
// every non-empty Update to emit. Unparseable sentences are reported to
// onError and skipped; a noisy receiver is normal.
func (d *Decoder) Run(ctx context.Context, r io.Reader, emit func(Update), onError func(error)) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			u, derr := d.Decode(line)
			switch {
			case derr != nil:
				if onError != nil {
					onError(derr)
				}
			case !u.Empty():
				emit(u)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read gps: %w", err)
		}
	}
}
