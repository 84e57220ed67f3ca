// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"math"
	"sync"
	"time"
)

const (
	earthRadiusM = 6371000.0
	mockRadiusM  = 150.0 // radius of the simulated loop
	mockPeriod   = 5 * time.Minute
)

// MockSource generates a smooth circular track around a center point on a
// ticker. It stands in for a real receiver in demos and tests.
type MockSource struct {
	centerLat float64
	centerLon float64
	perm      Permission

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewMockSource creates a mock source circling (lat, lon). A nil perm is
// treated as granted.
func NewMockSource(lat, lon float64, perm Permission) *MockSource {
	if perm == nil {
		perm = NewPermission(PermissionGranted)
	}
	return &MockSource{centerLat: lat, centerLon: lon, perm: perm}
}

// At returns the reading for a given elapsed time on the loop.
func (m *MockSource) At(elapsed time.Duration) Reading {
	angle := 2 * math.Pi * elapsed.Seconds() / mockPeriod.Seconds()

	dLat := mockRadiusM * math.Sin(angle) / earthRadiusM
	dLon := mockRadiusM * math.Cos(angle) / (earthRadiusM * math.Cos(m.centerLat*math.Pi/180))

	return Reading{
		Latitude:  m.centerLat + dLat*180/math.Pi,
		Longitude: m.centerLon + dLon*180/math.Pi,
		Speed:     2 * math.Pi * mockRadiusM / mockPeriod.Seconds(),
	}
}

func (m *MockSource) Subscribe(policy Policy, fn func(Reading)) error {
	if !m.perm.Granted() {
		return ErrPermissionDenied
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadySubscribed
	}

	interval := policy.Interval
	if interval < policy.MinInterval {
		interval = policy.MinInterval
	}
	if interval <= 0 {
		interval = time.Second
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true

	go m.run(time.Now(), interval, fn, m.stop, m.done)
	return nil
}

func (m *MockSource) run(start time.Time, interval time.Duration, fn func(Reading), stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			// stop wins over a tick that raced with it
			select {
			case <-stop:
				return
			default:
			}
			r := m.At(t.Sub(start))
			r.Time = t
			fn(r)
		}
	}
}

func (m *MockSource) Unsubscribe() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	stop, done := m.stop, m.done
	m.running = false
	m.mu.Unlock()

	close(stop)
	<-done
}
