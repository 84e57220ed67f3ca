// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import "errors"

var (
	// ErrValidation is returned by Start when the student id is empty.
	ErrValidation = errors.New("session: student id is required")

	// ErrPermissionPending is returned by Start when location access has
	// been requested; publishing begins once the request is granted.
	ErrPermissionPending = errors.New("session: waiting for location permission")
)
