// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notice carries short user-facing notices ("started publishing",
// "failed to publish location") from the session to whoever is watching.
package notice

import (
	"sync"
	"time"

	"github.com/relabs-tech/location_publisher/internal/logger"
)

// Level is the severity of a notice.
type Level string

const (
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Notice is one user-visible message.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// Nop discards notices.
type Nop struct{}

func (Nop) Notify(Level, string) {}

// Hub fans notices out to subscribers and logs each one. Delivery is
// non-blocking: a subscriber that falls behind misses notices.
type Hub struct {
	log logger.Logger
	now func() time.Time

	mu     sync.RWMutex
	subs   []chan Notice
	closed bool
}

// NewHub creates a Hub. A nil log discards log output.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop{}
	}
	return &Hub{log: log, now: time.Now}
}

func (h *Hub) Notify(level Level, msg string) {
	switch level {
	case Error:
		h.log.Errorf("notice: %s", msg)
	case Warn:
		h.log.Warnf("notice: %s", msg)
	default:
		h.log.Infof("notice: %s", msg)
	}

	n := Notice{Level: level, Message: msg, Time: h.now()}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (h *Hub) Subscribe() <-chan Notice {
	ch := make(chan Notice, 16)
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs = append(h.subs, ch)
	}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub <-chan Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.subs {
		if ch == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes all subscriber channels. Later notices are only logged.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
