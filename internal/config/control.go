// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strings"
)

// ControlConfig configures the local control API.
type ControlConfig struct {
	Address string `json:"address"`
}

// SetDefaults applies sane defaults.
func (c *ControlConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = "127.0.0.1:8080"
	}
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the output format.
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("unknown format %q", c.Format)
}
