// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "errors"

// Device errors. Transport failures are wrapped so callers can match them
// with errors.Is.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNotConnected   = errors.New("device not connected")
	ErrNotInitialized = errors.New("device not initialized")
	ErrOpenFailed     = errors.New("failed to open device")
	ErrClaimFailed    = errors.New("failed to claim interface")
	ErrWriteFailed    = errors.New("write failed")
	ErrReadFailed     = errors.New("read failed")
	ErrInvalidData    = errors.New("invalid data")
	ErrConnectionLost = errors.New("connection lost")
	ErrTimeout        = errors.New("timeout")
	ErrTransport      = errors.New("usb transport error")

	// ErrInvalidState is returned while the manager is in the error state,
	// where only Disconnect is accepted
	ErrInvalidState = errors.New("device in error state, disconnect first")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("device manager closed")
)
