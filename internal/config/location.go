// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"time"

	"github.com/relabs-tech/location_publisher/internal/location"
)

// Location source kinds.
const (
	SourceNMEA = "nmea"
	SourceMock = "mock"
)

// LocationConfig selects and tunes the location source.
type LocationConfig struct {
	// Source is "nmea" for a serial GPS receiver or "mock" for a simulated track.
	Source string `json:"source"`
	// Permission is the location permission mode: granted, prompt or denied.
	Permission string `json:"permission"`

	SerialPort string `json:"serial_port"`
	BaudRate   uint   `json:"baud_rate"`

	IntervalSeconds    int `json:"interval_seconds"`
	MinIntervalSeconds int `json:"min_interval_seconds"`

	// Center of the mock track.
	MockLatitude  float64 `json:"mock_latitude"`
	MockLongitude float64 `json:"mock_longitude"`
}

// SetDefaults applies sane defaults.
func (c *LocationConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = SourceNMEA
	}
	if c.Permission == "" {
		c.Permission = string(location.PermissionGranted)
	}
	if c.SerialPort == "" {
		c.SerialPort = "/dev/serial0"
	}
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 10
	}
	if c.MinIntervalSeconds == 0 {
		c.MinIntervalSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c LocationConfig) Validate() error {
	if c.Source != SourceNMEA && c.Source != SourceMock {
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if _, err := location.ParsePermissionMode(c.Permission); err != nil {
		return err
	}
	if c.IntervalSeconds < 0 || c.MinIntervalSeconds < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	if c.MockLatitude < -90 || c.MockLatitude > 90 || c.MockLongitude < -180 || c.MockLongitude > 180 {
		return fmt.Errorf("mock position out of range")
	}
	return nil
}

// Policy returns the update policy for the configured intervals.
func (c LocationConfig) Policy() location.Policy {
	return location.Policy{
		Accuracy:    location.AccuracyHigh,
		Interval:    time.Duration(c.IntervalSeconds) * time.Second,
		MinInterval: time.Duration(c.MinIntervalSeconds) * time.Second,
	}
}

// PermissionMode returns the parsed permission mode. Call after Validate.
func (c LocationConfig) PermissionMode() location.PermissionMode {
	mode, _ := location.ParsePermissionMode(c.Permission)
	return mode
}
