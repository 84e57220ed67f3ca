// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics records publisher activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives publisher events.
type Sink interface {
	RecordReading()
	RecordPublish(ok bool)
	SetPublishing(active bool)
	SetBrokerConnected(up bool)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordReading()          {}
func (NopSink) RecordPublish(bool)      {}
func (NopSink) SetPublishing(bool)      {}
func (NopSink) SetBrokerConnected(bool) {}

// PromSink records publisher events in Prometheus metrics.
type PromSink struct {
	readings   prometheus.Counter
	publishes  *prometheus.CounterVec
	publishing prometheus.Gauge
	connected  prometheus.Gauge
}

// NewPromSink registers the publisher metrics on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	readings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "location_readings_total",
		Help: "Location fixes delivered to the publishing session",
	})
	publishes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_publish_total",
		Help: "Location messages sent to the broker, by result",
	}, []string{"result"})
	publishing := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "location_session_publishing",
		Help: "1 while the session is publishing, 0 when idle",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "location_broker_connected",
		Help: "1 while the broker connection is up",
	})

	var err error
	if readings, err = register(reg, readings); err != nil {
		return nil, err
	}
	if publishes, err = register(reg, publishes); err != nil {
		return nil, err
	}
	if publishing, err = register(reg, publishing); err != nil {
		return nil, err
	}
	if connected, err = register(reg, connected); err != nil {
		return nil, err
	}
	return &PromSink{readings: readings, publishes: publishes, publishing: publishing, connected: connected}, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordReading() { s.readings.Inc() }

func (s *PromSink) RecordPublish(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	s.publishes.WithLabelValues(result).Inc()
}

func (s *PromSink) SetPublishing(active bool) { s.publishing.Set(boolToFloat(active)) }

func (s *PromSink) SetBrokerConnected(up bool) { s.connected.Set(boolToFloat(up)) }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
