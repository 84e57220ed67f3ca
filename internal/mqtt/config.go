// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqtt

import (
	"fmt"
	"time"
)

const (
	// DefaultTopic is the single topic location messages are published to.
	DefaultTopic = "assignment/location"

	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2

	maxQoS = QoSExactlyOnce
)

// Config defines the connection parameters for the broker connection.
type Config struct {
	Broker                string `json:"broker"`
	ClientID              string `json:"client_id"`
	Username              string `json:"username"`
	Password              string `json:"password"`
	Topic                 string `json:"topic"`
	KeepAliveSeconds      int    `json:"keep_alive_seconds"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds"`
	PublishTimeoutSeconds int    `json:"publish_timeout_seconds"`
	// AutoReconnect is left to paho once the first connect succeeded.
	AutoReconnect *bool `json:"auto_reconnect"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.KeepAliveSeconds <= 0 {
		c.KeepAliveSeconds = 30
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = 10
	}
	if c.PublishTimeoutSeconds <= 0 {
		c.PublishTimeoutSeconds = 5
	}
	if c.AutoReconnect == nil {
		on := true
		c.AutoReconnect = &on
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	return nil
}

func (c Config) publishTimeout() time.Duration {
	if c.PublishTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PublishTimeoutSeconds) * time.Second
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}
