// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package message builds the JSON payload published for every location fix.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/location_publisher/internal/location"
)

// TimestampLayout renders local wall-clock time as yyyy-MM-dd HH:mm:ss.SSSZ,
// e.g. "2026-10-17 14:03:27.415-0400".
const TimestampLayout = "2006-01-02 15:04:05.000-0700"

// ErrEmptyStudentID is returned when a message would carry no identifier.
var ErrEmptyStudentID = errors.New("message: student id is empty")

// LocationMessage is the wire entity on the location topic.
type LocationMessage struct {
	StudentID string  `json:"studentId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"` // km/h, two decimals
	Timestamp string  `json:"timestamp"`
}

// SpeedKmph converts m/s to km/h rounded to two decimal places, halves away
// from zero.
func SpeedKmph(mps float64) float64 {
	return math.Round(mps*3.6*100) / 100
}

// New builds the message for a reading. now is the construction time, not
// the fix time.
func New(r location.Reading, studentID string, now time.Time) LocationMessage {
	return LocationMessage{
		StudentID: studentID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Speed:     SpeedKmph(r.Speed),
		Timestamp: now.Format(TimestampLayout),
	}
}

// Encode serializes a reading and the session's student id to JSON.
func Encode(r location.Reading, studentID string, now time.Time) ([]byte, error) {
	if studentID == "" {
		return nil, ErrEmptyStudentID
	}
	payload, err := json.Marshal(New(r, studentID, now))
	if err != nil {
		return nil, fmt.Errorf("encode location message: %w", err)
	}
	return payload, nil
}

// Decode parses a payload received from the location topic.
func Decode(payload []byte) (LocationMessage, error) {
	var m LocationMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return LocationMessage{}, fmt.Errorf("decode location message: %w", err)
	}
	return m, nil
}

// Time parses the message timestamp.
func (m LocationMessage) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, m.Timestamp)
}
