// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/relabs-tech/location_publisher/internal/config"
	"github.com/relabs-tech/location_publisher/internal/control"
	"github.com/relabs-tech/location_publisher/internal/gps"
	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/metrics"
	"github.com/relabs-tech/location_publisher/internal/mqtt"
	"github.com/relabs-tech/location_publisher/internal/notice"
	"github.com/relabs-tech/location_publisher/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Publisher is the wired location publisher: one broker connection, one
// location source, one session and the control API in front of them.
type Publisher struct {
	log     logger.Logger
	hub     *notice.Hub
	conn    broker
	session *session.Session
	server  *control.Server
}

// NewPublisher wires every component from cfg and opens the broker
// connection. A failed connect is reported and the publisher keeps going;
// each publish then fails on its own until the broker comes back.
func NewPublisher(cfg *config.Config) (*Publisher, error) {
	logOpts := logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	log := logger.NewWithOptions("app", logOpts)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink, err := metrics.NewPromSink(reg)
	if err != nil {
		return nil, err
	}

	hub := notice.NewHub(logger.NewWithOptions("notice", logOpts))

	conn, err := newBroker(cfg.MQTT, logger.NewWithOptions("mqtt", logOpts), sink.SetBrokerConnected)
	if err != nil {
		return nil, err
	}
	log.Infof("connecting to MQTT broker %s as %s", cfg.MQTT.Broker, conn.ClientID())
	if err := conn.Connect(); err != nil {
		log.Errorf("%v", err)
		hub.Notify(notice.Error, "failed to connect to broker")
	}

	gate := location.NewPermission(cfg.Location.PermissionMode())
	var source location.Source
	switch cfg.Location.Source {
	case config.SourceMock:
		source = location.NewMockSource(cfg.Location.MockLatitude, cfg.Location.MockLongitude, gate)
		log.Infof("using mock location source around %.6f,%.6f", cfg.Location.MockLatitude, cfg.Location.MockLongitude)
	default:
		source = gps.NewReceiver(gps.Options{
			PortName: cfg.Location.SerialPort,
			BaudRate: cfg.Location.BaudRate,
		}, gate, logger.NewWithOptions("gps", logOpts))
		log.Infof("using NMEA receiver on %s at %d baud", cfg.Location.SerialPort, cfg.Location.BaudRate)
	}

	sess := session.New(source, gate, conn,
		session.WithTopic(cfg.MQTT.Topic),
		session.WithQoS(mqtt.QoSAtLeastOnce),
		session.WithPolicy(cfg.Location.Policy()),
		session.WithNotifier(hub),
		session.WithMetrics(sink),
		session.WithLogger(logger.NewWithOptions("session", logOpts)),
	)

	server := control.NewServer(cfg.Control.Address, sess, gate, conn, hub, reg, logger.NewWithOptions("control", logOpts))

	return &Publisher{
		log:     log,
		hub:     hub,
		conn:    conn,
		session: sess,
		server:  server,
	}, nil
}

// Session returns the publishing session.
func (p *Publisher) Session() *session.Session { return p.session }

// Addr returns the control API address once Run has started it.
func (p *Publisher) Addr() string { return p.server.Addr() }

// Run serves the control API until ctx is done, then stops the session and
// closes everything down.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.server.Start(); err != nil {
		p.conn.Disconnect()
		return err
	}

	<-ctx.Done()
	p.log.Infof("shutting down")

	p.session.Stop()
	p.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := p.server.Close(shutdownCtx)
	p.conn.Disconnect()
	if errors.Is(err, context.DeadlineExceeded) {
		p.log.Warnf("control server did not close in %v", shutdownTimeout)
		return nil
	}
	return err
}

// RunPublisher wires the publisher from cfg and runs it until ctx is done.
func RunPublisher(ctx context.Context, cfg *config.Config) error {
	p, err := NewPublisher(cfg)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}
