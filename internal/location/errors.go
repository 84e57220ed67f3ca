// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import "errors"

var (
	// ErrPermissionDenied is returned by Subscribe when location access has
	// not been granted.
	ErrPermissionDenied = errors.New("location: permission denied")

	// ErrAlreadySubscribed is returned by Subscribe when a subscription is
	// already active on the source.
	ErrAlreadySubscribed = errors.New("location: already subscribed")

	// ErrNoPendingRequest is returned by Resolve when no permission request
	// is waiting for an answer.
	ErrNoPendingRequest = errors.New("location: no pending permission request")
)
