// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session is the publishing state machine: it ties the student id,
// the location stream and the broker connection together and forwards every
// fix as one location message.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/logger"
	"github.com/relabs-tech/location_publisher/internal/message"
	"github.com/relabs-tech/location_publisher/internal/metrics"
	"github.com/relabs-tech/location_publisher/internal/mqtt"
	"github.com/relabs-tech/location_publisher/internal/notice"
)

// State is the session state. The zero value is Idle.
type State int

const (
	Idle State = iota
	Publishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Publishing:
		return "publishing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Publisher sends one payload to the broker. *mqtt.Connection implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
}

// Status is a point-in-time view of the session.
type Status struct {
	State             State
	StudentID         string // empty while idle
	PermissionPending bool
}

// Option configures a Session.
type Option func(*Session)

// WithTopic overrides the publish topic.
func WithTopic(topic string) Option { return func(s *Session) { s.topic = topic } }

// WithQoS overrides the publish QoS.
func WithQoS(qos byte) Option { return func(s *Session) { s.qos = qos } }

// WithPolicy overrides the location update policy.
func WithPolicy(p location.Policy) Option { return func(s *Session) { s.policy = p } }

// WithClock sets the clock used for message timestamps.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notice.Notifier) Option { return func(s *Session) { s.notifier = n } }

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Sink) Option { return func(s *Session) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Session) { s.log = l } }

// Session is the single publishing session of the process.
//
// Start and Stop are serialized by opMu. Location callbacks arrive on the
// source's goroutine and only take mu, which Stop never holds while
// unsubscribing, so an in-flight callback can always finish.
type Session struct {
	source   location.Source
	perm     location.Permission
	pub      Publisher
	notifier notice.Notifier
	metrics  metrics.Sink
	log      logger.Logger
	topic    string
	qos      byte
	policy   location.Policy
	now      func() time.Time

	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	studentID string
	gen       uint64 // bumped on every subscribe/stop; stale callbacks are ignored
	pending   *pendingStart
}

// pendingStart is a Start deferred until location permission is answered.
type pendingStart struct {
	studentID string
	cancel    chan struct{}
}

// New creates an idle Session.
func New(source location.Source, perm location.Permission, pub Publisher, opts ...Option) *Session {
	s := &Session{
		source:   source,
		perm:     perm,
		pub:      pub,
		notifier: notice.Nop{},
		metrics:  metrics.NopSink{},
		log:      logger.Nop{},
		topic:    mqtt.DefaultTopic,
		qos:      mqtt.QoSAtLeastOnce,
		policy:   location.DefaultPolicy(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.perm == nil {
		s.perm = location.NewPermission(location.PermissionGranted)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state, the active student id and whether a
// deferred start is waiting on permission.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, StudentID: s.studentID, PermissionPending: s.pending != nil}
}

// Start begins publishing for studentID. It is a no-op while already
// publishing. When location permission is missing it requests it and
// returns ErrPermissionPending; publishing then starts on grant, using the
// id given here.
func (s *Session) Start(studentID string) error {
	id := strings.TrimSpace(studentID)
	if id == "" {
		s.notifier.Notify(notice.Warn, "please enter your student id")
		return ErrValidation
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == Publishing {
		return nil
	}

	err := s.subscribe(id)
	if errors.Is(err, location.ErrPermissionDenied) {
		return s.requestPermission(id)
	}
	if err != nil {
		s.log.Errorf("start location updates: %v", err)
		s.notifier.Notify(notice.Error, "failed to start location updates")
		return err
	}
	return nil
}

// Stop ends publishing. Once it returns no further message is published.
// From Idle it only drops a start still waiting on permission.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.cancelPending()

	s.mu.Lock()
	if s.state != Publishing {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	s.studentID = ""
	s.gen++
	s.mu.Unlock()

	s.source.Unsubscribe()

	s.metrics.SetPublishing(false)
	s.log.Infof("stopped publishing")
	s.notifier.Notify(notice.Info, "stopped publishing")
}

// subscribe must be called with opMu held.
func (s *Session) subscribe(id string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.source.Subscribe(s.policy, func(r location.Reading) { s.onReading(gen, r) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = Publishing
	s.studentID = id
	s.mu.Unlock()

	s.metrics.SetPublishing(true)
	s.log.Infof("started publishing for student %s", id)
	s.notifier.Notify(notice.Info, "started publishing")
	return nil
}

// requestPermission must be called with opMu held.
func (s *Session) requestPermission(id string) error {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.studentID = id
		s.mu.Unlock()
		return ErrPermissionPending
	}
	p := &pendingStart{studentID: id, cancel: make(chan struct{})}
	s.pending = p
	s.mu.Unlock()

	answer := s.perm.Request()
	s.log.Infof("location permission requested")
	s.notifier.Notify(notice.Info, "location permission required")

	go s.awaitPermission(p, answer)
	return ErrPermissionPending
}

func (s *Session) awaitPermission(p *pendingStart, answer <-chan bool) {
	var granted bool
	select {
	case granted = <-answer:
	case <-p.cancel:
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.pending != p {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	id := p.studentID
	state := s.state
	s.mu.Unlock()

	if !granted {
		s.log.Warnf("location permission denied")
		s.notifier.Notify(notice.Warn, "location permission denied")
		return
	}
	if state == Publishing {
		return
	}
	if err := s.subscribe(id); err != nil {
		s.log.Errorf("start location updates after grant: %v", err)
		s.notifier.Notify(notice.Error, "failed to start location updates")
	}
}

// cancelPending must be called with opMu held.
func (s *Session) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		close(s.pending.cancel)
		s.pending = nil
	}
}

func (s *Session) onReading(gen uint64, r location.Reading) {
	s.mu.Lock()
	if s.state != Publishing || gen != s.gen {
		s.mu.Unlock()
		return
	}
	id := s.studentID
	s.mu.Unlock()

	s.metrics.RecordReading()

	payload, err := message.Encode(r, id, s.now())
	if err != nil {
		s.metrics.RecordPublish(false)
		s.log.Errorf("encode location: %v", err)
		s.notifier.Notify(notice.Error, "failed to publish location")
		return
	}

	if err := s.pub.Publish(s.topic, payload, s.qos); err != nil {
		s.metrics.RecordPublish(false)
		s.log.Errorf("failed to publish location: %v", err)
		s.notifier.Notify(notice.Error, "failed to publish location")
		return
	}

	s.metrics.RecordPublish(true)
	s.log.Debugf("location published: %s", payload)
	s.notifier.Notify(notice.Info, "location published")
}
