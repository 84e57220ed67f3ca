// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/location_publisher/internal/config"
	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/message"
	"github.com/relabs-tech/location_publisher/internal/mqtt"
	"github.com/relabs-tech/location_publisher/internal/session"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBroker struct {
	connectErr error
	onState    func(bool)

	mu           sync.Mutex
	cfg          mqtt.Config
	connected    bool
	disconnected bool
	published    []published
	handlers     map[string]mqtt.MessageHandler
}

func (b *fakeBroker) Connect() error {
	if b.connectErr != nil {
		return b.connectErr
	}
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	if b.onState != nil {
		b.onState(true)
	}
	return nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) Publish(topic string, payload []byte, qos byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return mqtt.ErrNotConnected
	}
	b.published = append(b.published, published{topic, qos, payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[string]mqtt.MessageHandler{}
	}
	b.handlers[topic] = h
	return nil
}

func (b *fakeBroker) Disconnect() {
	b.mu.Lock()
	b.connected = false
	b.disconnected = true
	b.mu.Unlock()
}

func (b *fakeBroker) ClientID() string { return b.cfg.ClientID }

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBroker) handler(topic string) mqtt.MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers[topic]
}

func stubBroker(t *testing.T, b *fakeBroker) {
	t.Helper()
	orig := newBroker
	t.Cleanup(func() { newBroker = orig })
	newBroker = func(cfg mqtt.Config, _ logger.Logger, onState func(bool)) (broker, error) {
		b.cfg = cfg
		b.onState = onState
		return b, nil
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.Location.Source = config.SourceMock
	cfg.Location.MockLatitude = 10.6418
	cfg.Location.MockLongitude = -61.3995
	cfg.Location.IntervalSeconds = 1
	cfg.Location.MinIntervalSeconds = 1
	cfg.Control.Address = "127.0.0.1:0"
	cfg.Log.Level = "error"
	cfg.SetDefaults()
	return cfg
}

func runPublisher(t *testing.T, p *Publisher) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	require.Eventually(t, func() bool { return p.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	return cancelCtx, errCh
}

func TestPublisherEndToEnd(t *testing.T) {
	b := &fakeBroker{}
	stubBroker(t, b)

	p, err := NewPublisher(testConfig())
	require.NoError(t, err)
	cancel, done := runPublisher(t, p)

	resp, err := http.Post("http://"+p.Addr()+"/api/session/start", "application/json",
		strings.NewReader(`{"studentId":"816035483"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return b.count() >= 1 }, 3*time.Second, 10*time.Millisecond)

	b.mu.Lock()
	first := b.published[0]
	b.mu.Unlock()
	assert.Equal(t, "assignment/location", first.topic)
	assert.Equal(t, mqtt.QoSAtLeastOnce, first.qos)
	m, err := message.Decode(first.payload)
	require.NoError(t, err)
	assert.Equal(t, "816035483", m.StudentID)
	assert.InDelta(t, 10.6418, m.Latitude, 0.01)
	assert.InDelta(t, -61.3995, m.Longitude, 0.01)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not shut down")
	}
	assert.Equal(t, session.Idle, p.Session().State())
	assert.True(t, b.disconnected)
}

func TestPublisherSurvivesConnectFailure(t *testing.T) {
	b := &fakeBroker{connectErr: errors.Join(mqtt.ErrConnectionFailed, errors.New("connection refused"))}
	stubBroker(t, b)

	p, err := NewPublisher(testConfig())
	require.NoError(t, err)

	// publishing is still possible to start; each message fails on its own
	require.NoError(t, p.Session().Start("s1"))
	assert.Equal(t, session.Publishing, p.Session().State())
	p.Session().Stop()
	assert.Zero(t, b.count())
}

func TestPublisherUsesConfiguredPermission(t *testing.T) {
	stubBroker(t, &fakeBroker{})
	cfg := testConfig()
	cfg.Location.Permission = string(location.PermissionPrompt)

	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, p.Session().Start("s1"), session.ErrPermissionPending)
	assert.True(t, p.Session().Status().PermissionPending)
	p.Session().Stop()
}

func TestPublisherNMEASourceReportsOpenFailure(t *testing.T) {
	stubBroker(t, &fakeBroker{})
	cfg := testConfig()
	cfg.Location.Source = config.SourceNMEA
	cfg.Location.SerialPort = "/dev/does-not-exist-location-publisher"

	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	err = p.Session().Start("s1")
	require.Error(t, err)
	assert.Equal(t, session.Idle, p.Session().State())
}

func TestRunConsolePrintsMessages(t *testing.T) {
	b := &fakeBroker{}
	stubBroker(t, b)
	cfg := testConfig()
	cfg.MQTT.ClientID = "publisher-1"

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunConsole(ctx, cfg, &out) }()

	require.Eventually(t, func() bool { return b.handler("assignment/location") != nil }, time.Second, 5*time.Millisecond)
	assert.Empty(t, b.cfg.ClientID, "console picks its own client id")

	payload, err := message.Encode(location.Reading{Latitude: 10.5, Longitude: -61.25, Speed: 10},
		"816035483", time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	h := b.handler("assignment/location")
	h("assignment/location", payload)
	h("assignment/location", []byte("not json"))

	cancel()
	require.NoError(t, <-done)

	got := out.String()
	assert.Contains(t, got, "student=816035483")
	assert.Contains(t, got, "lat=10.500000 lon=-61.250000 speed=36.00km/h")
	assert.Equal(t, 1, strings.Count(got, "\n"))
	assert.True(t, b.disconnected)
}

func TestRunConsoleConnectFailure(t *testing.T) {
	stubBroker(t, &fakeBroker{connectErr: mqtt.ErrConnectionFailed})
	err := RunConsole(context.Background(), testConfig(), &bytes.Buffer{})
	require.ErrorIs(t, err, mqtt.ErrConnectionFailed)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
