// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"sync"
)

// PermissionMode selects how a Gate answers permission requests.
type PermissionMode string

const (
	// PermissionGranted: access is always granted.
	PermissionGranted PermissionMode = "granted"
	// PermissionPrompt: access starts ungranted; each request waits for an
	// operator answer delivered through Resolve.
	PermissionPrompt PermissionMode = "prompt"
	// PermissionDenied: every request is answered with a denial.
	PermissionDenied PermissionMode = "denied"
)

// ParsePermissionMode validates a configured mode. Empty means granted.
func ParsePermissionMode(s string) (PermissionMode, error) {
	switch PermissionMode(s) {
	case "", PermissionGranted:
		return PermissionGranted, nil
	case PermissionPrompt, PermissionDenied:
		return PermissionMode(s), nil
	}
	return "", fmt.Errorf("unknown location permission mode %q", s)
}

// Permission models location access as a two-phase operation: Request
// returns immediately and the answer arrives later on the channel.
type Permission interface {
	Granted() bool
	Request() <-chan bool
}

// Gate is the Permission used by the publisher. In prompt mode a request
// stays pending until Resolve is called.
type Gate struct {
	mode PermissionMode

	mu      sync.Mutex
	granted bool
	waiters []chan bool
}

// NewPermission creates a Gate in the given mode.
func NewPermission(mode PermissionMode) *Gate {
	return &Gate{mode: mode, granted: mode == PermissionGranted}
}

func (g *Gate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

// Request asks for access. The returned channel receives exactly one value
// and is then closed.
func (g *Gate) Request() <-chan bool {
	ch := make(chan bool, 1)
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.granted:
		ch <- true
		close(ch)
	case g.mode == PermissionDenied:
		ch <- false
		close(ch)
	default:
		g.waiters = append(g.waiters, ch)
	}
	return ch
}

// Pending reports whether a request is waiting for an answer.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters) > 0
}

// Resolve answers every pending request. A grant is remembered; a denial
// only answers the current round, so a later request prompts again.
func (g *Gate) Resolve(granted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.waiters) == 0 {
		return ErrNoPendingRequest
	}
	if granted {
		g.granted = true
	}
	for _, ch := range g.waiters {
		ch <- granted
		close(ch)
	}
	g.waiters = nil
	return nil
}
