// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package location defines the position-fix stream the publisher consumes:
// readings, the update policy, the Source subscription contract and the
// permission gate in front of it.
package location

import "time"

// Reading is a single position fix.
type Reading struct {
	Latitude  float64   // decimal degrees
	Longitude float64   // decimal degrees
	Speed     float64   // meters per second
	Time      time.Time // fix time, informational only
}

// Accuracy is the requested fix accuracy.
type Accuracy int

const (
	AccuracyHigh Accuracy = iota
	AccuracyBalanced
	AccuracyLow
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyHigh:
		return "high"
	case AccuracyBalanced:
		return "balanced"
	case AccuracyLow:
		return "low"
	}
	return "unknown"
}

// Policy controls how often fixes are delivered. Interval is the target
// cadence; fixes closer together than MinInterval are dropped.
type Policy struct {
	Accuracy    Accuracy
	Interval    time.Duration
	MinInterval time.Duration
}

// DefaultPolicy requests high-accuracy fixes every 10s, never more often than
// every 5s.
func DefaultPolicy() Policy {
	return Policy{
		Accuracy:    AccuracyHigh,
		Interval:    10 * time.Second,
		MinInterval: 5 * time.Second,
	}
}
