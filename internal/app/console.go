// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/relabs-tech/location_publisher/internal/config"
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/message"
	"github.com/relabs-tech/location_publisher/internal/mqtt"
)

// RunConsole subscribes to the location topic and prints every message to
// out until ctx is done. It uses its own random client id so it can run
// next to a publisher sharing the same config.
func RunConsole(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logger.NewWithOptions("console", logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	mcfg := cfg.MQTT
	mcfg.ClientID = ""
	conn, err := newBroker(mcfg, log, nil)
	if err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Disconnect()
	log.Infof("connected to MQTT broker at %s", mcfg.Broker)

	var mu sync.Mutex
	err = conn.Subscribe(mcfg.Topic, mqtt.QoSAtLeastOnce, func(topic string, payload []byte) {
		m, err := message.Decode(payload)
		if err != nil {
			log.Warnf("%s: unmarshal error: %v", topic, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "[LOC ]  student=%s lat=%.6f lon=%.6f speed=%.2fkm/h time=%s\n",
			m.StudentID, m.Latitude, m.Longitude, m.Speed, m.Timestamp)
	})
	if err != nil {
		return err
	}
	log.Infof("subscribed to %s", mcfg.Topic)

	<-ctx.Done()
	log.Infof("shutting down")
	return nil
}
