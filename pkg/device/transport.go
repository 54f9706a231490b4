// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "time"

// Info describes an attached macro pad
type Info struct {
	Path         string `json:"path"`
	VendorID     uint16 `json:"vendorId"`
	ProductID    uint16 `json:"productId"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Transport is an open, claimed device interface.
// Errors returned by a Transport are already mapped onto the package errors.
type Transport interface {
	// Write sends one packet to the OUT endpoint
	Write(p []byte, timeout time.Duration) (int, error)
	// Read receives one report from the IN endpoint, returning ErrTimeout
	// if nothing arrives in time
	Read(p []byte, timeout time.Duration) (int, error)
	// Close releases the interface and the device handle
	Close() error
}

// Opener finds and opens devices
type Opener interface {
	Enumerate(vid, pid uint16) ([]Info, error)
	Open(vid, pid uint16) (Transport, Info, error)
}
