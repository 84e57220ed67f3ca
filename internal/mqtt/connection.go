// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqtt holds the single long-lived broker connection used to publish
// location messages.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/location_publisher/internal/logger"
)

// pahoClient is the subset of paho.Client the connection uses.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MessageHandler receives messages for a subscription.
type MessageHandler func(topic string, payload []byte)

// Connection is the broker connection. It is built once at startup and
// injected wherever messages are published.
type Connection struct {
	cli pahoClient
	cfg Config
	log logger.Logger

	// OnStateChange, if set, is called with the new connection state.
	OnStateChange func(connected bool)
}

// NewConnection builds the client without touching the network.
func NewConnection(cfg Config, log logger.Logger) (*Connection, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	c := &Connection{cfg: cfg, log: log}
	opts := NewClientOptions(cfg)
	opts.OnConnect = func(paho.Client) {
		c.log.Infof("MQTT connected to %s as %s", c.cfg.Broker, c.cfg.ClientID)
		c.notify(true)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Errorf("MQTT connection lost: %v", err)
		c.notify(false)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		c.log.Warnf("reconnecting to MQTT broker %s", c.cfg.Broker)
	}
	c.cli = newMQTTClient(opts)
	return c, nil
}

// NewClientOptions builds paho client options from Config.
func NewClientOptions(cfg Config) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(time.Duration(cfg.KeepAliveSeconds) * time.Second).
		SetConnectTimeout(cfg.connectTimeout()).
		SetCleanSession(true)
	if cfg.AutoReconnect != nil {
		opts.SetAutoReconnect(*cfg.AutoReconnect)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	return opts
}

func (c *Connection) notify(connected bool) {
	if c.OnStateChange != nil {
		c.OnStateChange(connected)
	}
}

// ClientID returns the identifier presented to the broker.
func (c *Connection) ClientID() string { return c.cfg.ClientID }

// Topic returns the configured publish topic.
func (c *Connection) Topic() string { return c.cfg.Topic }

// Connect opens the connection. A failure is not retried; the connection
// stays usable and later publishes fail individually.
func (c *Connection) Connect() error {
	token := c.cli.Connect()
	if !token.WaitTimeout(c.cfg.connectTimeout()) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, c.cfg.Broker, c.cfg.connectTimeout())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.cfg.Broker, err)
	}
	return nil
}

// IsConnected reports whether the client currently has a live connection.
func (c *Connection) IsConnected() bool {
	return c.cli.IsConnected()
}

// Publish sends one message. There is no retry and nothing is queued for
// resend: a failed message is dropped by the caller.
func (c *Connection) Publish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.cli.IsConnected() {
		return fmt.Errorf("%w: %w", ErrPublishFailed, ErrNotConnected)
	}

	token := c.cli.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(c.cfg.publishTimeout()) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, c.cfg.publishTimeout())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic.
func (c *Connection) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if !c.cli.IsConnected() {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, ErrNotConnected)
	}
	token := c.cli.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.publishTimeout()) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, c.cfg.publishTimeout())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Disconnect closes the connection, waiting up to 250ms for in-flight work.
func (c *Connection) Disconnect() {
	if c.cli.IsConnected() {
		c.cli.Disconnect(250)
		c.log.Infof("MQTT disconnected")
	}
	c.notify(false)
}
