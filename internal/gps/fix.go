// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/location_publisher/internal/location"
)

// knotsToMPS converts speed over ground from knots to meters per second.
const knotsToMPS = 0.514444

// Fix represents a single GPS fix decoded from an RMC sentence.
type Fix struct {
	Time       time.Time `json:"time"`        // UTC fix time, zero if the receiver had no date/time yet
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lon"`         // decimal degrees
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
	Validity   string    `json:"validity"`    // "A" (valid) / "V" (void)
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// Reading converts the fix into the publisher's reading type.
func (f Fix) Reading() location.Reading {
	return location.Reading{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Speed:     f.SpeedKnots * knotsToMPS,
		Time:      f.Time,
	}
}

// ParseLine decodes one NMEA line. Only RMC sentences produce a fix; anything
// else, including noise and partial sentences, returns false.
func ParseLine(line string) (Fix, bool) {
	line = strings.TrimSpace(line)

	// NMEA sentences start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false
	}
	if sentence.DataType() != nmea.TypeRMC {
		return Fix{}, false
	}
	m := sentence.(nmea.RMC)

	return Fix{
		Time:       fixTime(m.Date, m.Time),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
	}, true
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
