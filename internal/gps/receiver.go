// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gps reads position fixes from a serial NMEA receiver.
package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/location_publisher/internal/location"
	"github.com/relabs-tech/location_publisher/internal/logger"
)

// Options configures the serial port.
type Options struct {
	PortName string // /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, ...
	BaudRate uint
}

// openPort is swapped in tests.
var openPort = func(o Options) (io.ReadWriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:              o.PortName,
		BaudRate:              o.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
}

// Receiver is a location.Source backed by an NMEA GPS on a serial port.
// The port is opened on Subscribe and closed on Unsubscribe.
type Receiver struct {
	opts Options
	perm location.Permission
	log  logger.Logger
	now  func() time.Time

	mu  sync.Mutex
	sub *subscription
}

// subscription is one open port and its read loop. A read can stay blocked in
// the driver after Close, so stopped is what keeps a stale loop from
// delivering.
type subscription struct {
	port    io.ReadWriteCloser
	stopped atomic.Bool
	deliver sync.Mutex // held while the callback runs
}

// NewReceiver creates a Receiver. A nil perm is treated as granted.
func NewReceiver(opts Options, perm location.Permission, log logger.Logger) *Receiver {
	if perm == nil {
		perm = location.NewPermission(location.PermissionGranted)
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Receiver{opts: opts, perm: perm, log: log, now: time.Now}
}

func (r *Receiver) Subscribe(policy location.Policy, fn func(location.Reading)) error {
	if !r.perm.Granted() {
		return location.ErrPermissionDenied
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		return location.ErrAlreadySubscribed
	}

	port, err := openPort(r.opts)
	if err != nil {
		return fmt.Errorf("open gps serial port %s: %w", r.opts.PortName, err)
	}
	r.log.Infof("GPS serial port opened on %s at %d baud", r.opts.PortName, r.opts.BaudRate)

	sub := &subscription{port: port}
	r.sub = sub
	go r.readLoop(sub, policy, fn)
	return nil
}

func (r *Receiver) readLoop(sub *subscription, policy location.Policy, fn func(location.Reading)) {
	reader := bufio.NewReader(sub.port)
	var last time.Time

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !sub.stopped.Load() {
				r.log.Errorf("GPS read error: %v", err)
			}
			return
		}

		fix, ok := ParseLine(line)
		if !ok {
			continue
		}
		if !fix.Valid() {
			r.log.Debugf("GPS fix void, skipping")
			continue
		}

		now := r.now()
		if policy.MinInterval > 0 && !last.IsZero() && now.Sub(last) < policy.MinInterval {
			continue
		}
		last = now

		sub.deliver.Lock()
		if !sub.stopped.Load() {
			fn(fix.Reading())
		}
		sub.deliver.Unlock()
	}
}

// Unsubscribe stops delivery and closes the port. It returns once no
// callback is running.
func (r *Receiver) Unsubscribe() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub == nil {
		return
	}

	sub.stopped.Store(true)
	sub.deliver.Lock()
	sub.deliver.Unlock() //nolint:staticcheck

	if err := sub.port.Close(); err != nil {
		r.log.Warnf("GPS serial port close: %v", err)
	}
}
