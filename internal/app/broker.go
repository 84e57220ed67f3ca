// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/mqtt"
)

// broker is the slice of *mqtt.Connection the runners use.
type broker interface {
	Connect() error
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Disconnect()
	ClientID() string
}

// newBroker builds the broker connection. Tests replace it with a fake.
var newBroker = func(cfg mqtt.Config, log logger.Logger, onState func(bool)) (broker, error) {
	conn, err := mqtt.NewConnection(cfg, log)
	if err != nil {
		return nil, err
	}
	conn.OnStateChange = onState
	return conn, nil
}
