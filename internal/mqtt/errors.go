// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mqtt

import "errors"

// Use errors.Is to check for these in calling code.
var (
	// ErrConnectionFailed is returned when the broker cannot be reached at
	// startup. The process keeps running disconnected.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned when publishing without a live connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps every per-message send failure.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription is rejected.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
