// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"sync"
	"time"
)

// Source is anything that can stream position fixes: the serial NMEA
// receiver, the mock track, or a test feed.
//
// Subscribe must fail with ErrPermissionDenied when the permission gate is
// closed. Unsubscribe is synchronous: once it returns, the callback is not
// running and will not be invoked again.
type Source interface {
	Subscribe(policy Policy, fn func(Reading)) error
	Unsubscribe()
}

// throttle drops fixes that arrive sooner than MinInterval after the last
// delivered one.
type throttle struct {
	min  time.Duration
	last time.Time
}

func (t *throttle) allow(now time.Time) bool {
	if t.min > 0 && !t.last.IsZero() && now.Sub(t.last) < t.min {
		return false
	}
	t.last = now
	return true
}

// Feed is a push-driven Source. Whatever owns the fix stream calls Deliver;
// the callback runs synchronously on the caller's goroutine.
type Feed struct {
	perm Permission
	now  func() time.Time

	mu  sync.Mutex
	fn  func(Reading)
	thr throttle
}

// NewFeed creates a Feed gated by perm. A nil perm is treated as granted.
func NewFeed(perm Permission) *Feed {
	if perm == nil {
		perm = NewPermission(PermissionGranted)
	}
	return &Feed{perm: perm, now: time.Now}
}

func (f *Feed) Subscribe(policy Policy, fn func(Reading)) error {
	if !f.perm.Granted() {
		return ErrPermissionDenied
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fn != nil {
		return ErrAlreadySubscribed
	}
	f.fn = fn
	f.thr = throttle{min: policy.MinInterval}
	return nil
}

func (f *Feed) Unsubscribe() {
	f.mu.Lock()
	f.fn = nil
	f.mu.Unlock()
}

// Subscribed reports whether a callback is registered.
func (f *Feed) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn != nil
}

// Deliver hands r to the subscriber. It reports whether the reading was
// delivered; unsubscribed and throttled readings are dropped.
func (f *Feed) Deliver(r Reading) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fn == nil || !f.thr.allow(f.now()) {
		return false
	}
	f.fn(r)
	return true
}
