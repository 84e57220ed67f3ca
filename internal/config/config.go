// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the publisher configuration from a YAML or JSON file
// with LP_ environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/relabs-tech/location_publisher/internal/mqtt"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore, e.g. LP_MQTT__BROKER.
const EnvPrefix = "LP_"

// Config holds all application configuration values.
type Config struct {
	MQTT     mqtt.Config    `json:"mqtt"`
	Location LocationConfig `json:"location"`
	Control  ControlConfig  `json:"control"`
	Log      LogConfig      `json:"log"`
}

// Load reads path, applies environment overrides, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Location.SetDefaults()
	c.Control.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Location.Validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
