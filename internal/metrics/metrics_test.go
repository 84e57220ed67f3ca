// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSink(reg)
	require.NoError(t, err)

	s.RecordReading()
	s.RecordReading()
	s.RecordPublish(true)
	s.RecordPublish(false)
	s.RecordPublish(true)
	s.SetPublishing(true)
	s.SetBrokerConnected(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.readings))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.publishes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.publishes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.publishing))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.connected))

	s.SetPublishing(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(s.publishing))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSink(reg)
	require.NoError(t, err)
	b, err := NewPromSink(reg)
	require.NoError(t, err)

	a.RecordReading()
	b.RecordReading()
	assert.Equal(t, 2.0, testutil.ToFloat64(b.readings))
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.RecordReading()
	s.RecordPublish(false)
	s.SetPublishing(true)
	s.SetBrokerConnected(true)
}
